package ratelimit

import (
	"context"

	"github.com/ceyewan/flake/metrics"
)

// 指标名称
const (
	MetricAllowed = "ratelimit_allowed_total"
	MetricDenied  = "ratelimit_denied_total"
	MetricErrors  = "ratelimit_errors_total"

	// LabelMode standalone|distributed
	LabelMode = "mode"
)

type limiterMetrics struct {
	allowed metrics.Counter
	denied  metrics.Counter
	errors  metrics.Counter
	mode    metrics.Label
}

func newLimiterMetrics(m metrics.Meter, mode string) *limiterMetrics {
	noop, _ := metrics.Discard().Counter("", "")
	counter := func(name, desc string) metrics.Counter {
		c, err := m.Counter(name, desc)
		if err != nil {
			return noop
		}
		return c
	}
	return &limiterMetrics{
		allowed: counter(MetricAllowed, "Requests admitted by the rate limiter"),
		denied:  counter(MetricDenied, "Requests rejected by the rate limiter"),
		errors:  counter(MetricErrors, "Rate limiter backend errors"),
		mode:    metrics.L(LabelMode, mode),
	}
}

func (m *limiterMetrics) observe(ctx context.Context, allowed bool, err error) {
	switch {
	case err != nil:
		m.errors.Inc(ctx, m.mode)
	case allowed:
		m.allowed.Inc(ctx, m.mode)
	default:
		m.denied.Inc(ctx, m.mode)
	}
}
