package db

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/metrics"
)

// Option 配置 DB 实例的选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	tracer trace.TracerProvider
	idgen  IDGenerator
	silent bool // 禁用 SQL 日志
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("db")
		}
	}
}

// WithMeter 注入 Meter，记录 SQL 耗时
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithTracer 注入 TracerProvider，默认使用全局 Provider
func WithTracer(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp
		}
	}
}

// WithIDGenerator 分表主键生成器
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		o.idgen = gen
	}
}

// WithSilentMode 禁用 SQL 日志输出
func WithSilentMode() Option {
	return func(o *options) {
		o.silent = true
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		tracer: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
