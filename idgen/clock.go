package idgen

import "time"

// Clock 生成器使用的时间源，测试中可替换为可控时钟
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock 返回基于 time.Now 的时钟
func SystemClock() Clock { return systemClock{} }
