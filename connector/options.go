package connector

import (
	"context"
	"sync/atomic"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/metrics"
)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// Option 连接器选项
type Option func(*options)

// WithLogger 设置 Logger，自动追加 connector 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithMeter 设置 Meter，用于上报连接健康状态
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// healthState 记录最近一次建连或探活的结果，并同步到 connector_up{type,name}
type healthState struct {
	ok    atomic.Bool
	gauge metrics.Gauge
	attrs []metrics.Label
}

func newHealthState(m metrics.Meter, kind, name string) *healthState {
	g, err := m.Gauge("connector_up", "Whether the connector passed its last health check (1) or not (0).")
	if err != nil {
		g, _ = metrics.Discard().Gauge("", "")
	}
	return &healthState{gauge: g, attrs: []metrics.Label{metrics.L("type", kind), metrics.L("name", name)}}
}

func (h *healthState) mark(ctx context.Context, ok bool) {
	h.ok.Store(ok)
	var v float64
	if ok {
		v = 1
	}
	h.gauge.Set(ctx, v, h.attrs...)
}

// clear 只翻转本地状态，不上报
func (h *healthState) clear() { h.ok.Store(false) }

func (h *healthState) up() bool { return h.ok.Load() }
