package server

import (
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/connector"
	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/metrics"
	"github.com/ceyewan/flake/ratelimit"
)

// Option 服务选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	tracer  oteltrace.Tracer
	limiter ratelimit.Limiter
	uuid    *idgen.UUID
	checks  []connector.Connector
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("server")
		}
	}
}

// WithMeter 设置 Meter，同时决定 /metrics 暴露的内容
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithTracer 设置生成 ID 时使用的 Tracer，默认取全局 Provider
func WithTracer(tracer oteltrace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithLimiter 设置批量接口的限流器，需配合 Config.BatchLimit
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

// WithUUID 设置 /v1/uuid 使用的生成器，默认 v7
func WithUUID(u *idgen.UUID) Option {
	return func(o *options) {
		if u != nil {
			o.uuid = u
		}
	}
}

// WithHealthChecks 注册 /healthz 检查的连接器
func WithHealthChecks(conns ...connector.Connector) Option {
	return func(o *options) {
		for _, c := range conns {
			if c != nil {
				o.checks = append(o.checks, c)
			}
		}
	}
}
