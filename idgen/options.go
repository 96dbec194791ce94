package idgen

import (
	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/metrics"
)

// Option 生成器初始化选项
type Option func(*Options)

// Options 生成器依赖
type Options struct {
	Logger clog.Logger
	Meter  metrics.Meter
	Clock  Clock
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMeter 设置 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *Options) {
		o.Meter = meter
	}
}

// WithClock 替换时间源
func WithClock(clock Clock) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = clog.Discard()
	}
	if o.Meter == nil {
		o.Meter = metrics.Discard()
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	return o
}
