package idgen

import (
	"sync"
	"time"
)

// fakeClock 可控时钟。Sleep 默认推进时间；累计读取次数达到 jumpAt 时跳到 jumpTo。
type fakeClock struct {
	mu     sync.Mutex
	ms     int64
	reads  int
	jumpAt int
	jumpTo int64
	frozen bool // Sleep 不推进时间
	slept  []time.Duration
}

func newFakeClock(ms int64) *fakeClock {
	return &fakeClock{ms: ms}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.jumpAt > 0 && c.reads >= c.jumpAt {
		c.ms = c.jumpTo
		c.jumpAt = 0
	}
	return time.UnixMilli(c.ms)
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	if !c.frozen {
		c.ms += d.Milliseconds()
	}
}

func (c *fakeClock) set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms = ms
}

// advanceAfter 再读取 n 次后前进 1ms
func (c *fakeClock) advanceAfter(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jumpAt, c.jumpTo = c.reads+n, c.ms+1
}

// jumpAfter 再读取 n 次后跳到 ms，可用于模拟回拨
func (c *fakeClock) jumpAfter(n int, ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jumpAt, c.jumpTo = c.reads+n, ms
}

func (c *fakeClock) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *fakeClock) sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}
