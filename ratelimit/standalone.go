package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/flake/clog"
)

// limiterEntry rate.Limiter 及其最后访问时间
type limiterEntry struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

type standaloneLimiter struct {
	cfg      *StandaloneConfig
	logger   clog.Logger
	metrics  *limiterMetrics
	limiters sync.Map // map[string]*limiterEntry

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newStandalone(cfg *StandaloneConfig, o *options) (*standaloneLimiter, error) {
	l := &standaloneLimiter{
		cfg:     cfg,
		logger:  o.logger,
		metrics: newLimiterMetrics(o.meter, "standalone"),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.cleanup()

	l.logger.Info("standalone rate limiter created",
		clog.Duration("cleanup_interval", cfg.CleanupInterval),
		clog.Duration("idle_timeout", cfg.IdleTimeout))
	return l, nil
}

func (l *standaloneLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *standaloneLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if err := checkArgs(key, limit, n); err != nil {
		return false, err
	}
	select {
	case <-l.stopCh:
		return false, ErrClosed
	default:
	}

	entry := l.entry(key, limit)
	now := time.Now()
	allowed := entry.limiter.AllowN(now, n)
	entry.mu.Lock()
	entry.lastSeen = now
	entry.mu.Unlock()

	l.metrics.observe(ctx, allowed, nil)
	l.logger.DebugContext(ctx, "rate limit check",
		clog.String("key", key),
		clog.Bool("allowed", allowed),
		clog.Int("requested", n))
	return allowed, nil
}

// entry 规则也是 key 的一部分，同一 key 换规则后使用新的桶
func (l *standaloneLimiter) entry(key string, limit Limit) *limiterEntry {
	cacheKey := key + "|" + strconv.FormatFloat(limit.Rate, 'g', -1, 64) + "|" + strconv.Itoa(limit.Burst)
	if v, ok := l.limiters.Load(cacheKey); ok {
		return v.(*limiterEntry)
	}
	e := &limiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst),
		lastSeen: time.Now(),
	}
	actual, _ := l.limiters.LoadOrStore(cacheKey, e)
	return actual.(*limiterEntry)
}

func (l *standaloneLimiter) cleanup() {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := l.evictIdle(now); n > 0 {
				l.logger.Debug("cleaned up idle limiters", clog.Int("count", n))
			}
		case <-l.stopCh:
			return
		}
	}
}

func (l *standaloneLimiter) evictIdle(now time.Time) int {
	count := 0
	l.limiters.Range(func(key, value any) bool {
		e := value.(*limiterEntry)
		e.mu.Lock()
		idle := now.Sub(e.lastSeen)
		e.mu.Unlock()

		if idle > l.cfg.IdleTimeout {
			l.limiters.Delete(key)
			count++
		}
		return true
	})
	return count
}

func (l *standaloneLimiter) size() int {
	n := 0
	l.limiters.Range(func(any, any) bool { n++; return true })
	return n
}

// Close 停止清理协程，可重复调用
func (l *standaloneLimiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopCh)
		<-l.done
	})
	return nil
}
