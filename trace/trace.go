// Package trace 初始化全局 OpenTelemetry TracerProvider，并提供 Span 辅助函数与 Gin 中间件。
package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/ceyewan/flake/xerrors"
)

const exportTimeout = 5 * time.Second

// Init 安装导出到 OTLP/gRPC 的全局 TracerProvider，返回的函数在退出时刷新剩余 Span。
// cfg.Enabled 为 false 时等价于 Discard。
func Init(cfg *Config) (func(context.Context) error, error) {
	if cfg != nil && !cfg.Enabled {
		return Discard(cfg.ServiceName)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	ctx := context.Background()
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := serviceResource(ctx, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	spanProcessing := sdktrace.WithBatcher(exporter)
	if cfg.Batcher == "simple" {
		spanProcessing = sdktrace.WithSyncer(exporter)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Sampler))),
		spanProcessing,
	)
	install(tp)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(exportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "trace: otlp exporter %s", cfg.Endpoint)
	}
	return exp, nil
}

// install 设置全局 Provider 与 W3C traceparent/baggage 传播
func install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func serviceResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	var opts []resource.Option
	if serviceName != "" {
		opts = append(opts, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	}
	res, err := resource.New(ctx, opts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "trace: resource")
	}
	return res, nil
}

func validateConfig(cfg *Config) error {
	var reason string
	switch {
	case cfg == nil:
		reason = "config is required"
	case cfg.ServiceName == "":
		reason = "service_name is required"
	case cfg.Endpoint == "":
		reason = "endpoint is required"
	case cfg.Sampler < 0 || cfg.Sampler > 1:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "trace: sampler %v not in [0, 1]", cfg.Sampler)
	case cfg.Batcher != "" && cfg.Batcher != "batch" && cfg.Batcher != "simple":
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "trace: batcher %q, want batch|simple", cfg.Batcher)
	default:
		return nil
	}
	return xerrors.Wrap(xerrors.ErrInvalidInput, "trace: "+reason)
}
