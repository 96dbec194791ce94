package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/xerrors"
)

const instrumentationName = "github.com/ceyewan/flake"

// New 创建 Meter。每个 Meter 持有独立的 Prometheus Registry，
// 抓取入口通过 Handler(meter) 挂载，或由 Config.Port 单独监听。
func New(cfg *Config, opts ...Option) (Meter, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "metrics: config is required")
	}
	if !cfg.Enabled {
		return Discard(), nil
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, err.Error())
	}

	o := options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	provider, handler, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	m := &otelMeter{
		meter:    provider.Meter(instrumentationName),
		provider: provider,
		handler:  handler,
		logger:   o.logger,
	}
	if cfg.EnableRuntime {
		if err := runtime.Start(runtime.WithMeterProvider(provider)); err != nil {
			_ = provider.Shutdown(context.Background())
			return nil, xerrors.Wrap(err, "metrics: runtime instrumentation")
		}
	}
	if cfg.Port > 0 {
		if err := m.listen(cfg.Port, cfg.Path); err != nil {
			_ = provider.Shutdown(context.Background())
			return nil, err
		}
	}
	return m, nil
}

// newProvider 组装 Registry -> Prometheus Reader -> MeterProvider，并设为全局 Provider
func newProvider(cfg *Config) (*sdkmetric.MeterProvider, http.Handler, error) {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.Version),
	))
	if err != nil {
		return nil, nil, xerrors.Wrap(err, "metrics: resource")
	}

	registry := promclient.NewRegistry()
	reader, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, xerrors.Wrap(err, "metrics: prometheus exporter")
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(provider)
	return provider, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// Must 同 New，出错时 panic，仅用于初始化
func Must(cfg *Config, opts ...Option) Meter {
	m, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Sprintf("metrics: %v", err))
	}
	return m
}

// Handler 返回 Meter 的 Prometheus 抓取接口，noop Meter 返回 404。
func Handler(m Meter) http.Handler {
	if om, ok := m.(*otelMeter); ok {
		return om.handler
	}
	return http.NotFoundHandler()
}

type otelMeter struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	logger   clog.Logger

	mu  sync.Mutex
	srv *http.Server
}

func (m *otelMeter) listen(port int, path string) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return xerrors.Wrapf(err, "metrics: listen on %d", port)
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	m.mu.Lock()
	m.srv = srv
	m.mu.Unlock()

	m.logger.Info("metrics endpoint listening", clog.String("addr", ln.Addr().String()), clog.String("path", path))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics endpoint stopped", clog.Error(err))
		}
	}()
	return nil
}

// Shutdown 先关闭独立监听，再刷新并关闭 MeterProvider
func (m *otelMeter) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	srv := m.srv
	m.srv = nil
	m.mu.Unlock()

	var shutdownErr error
	if srv != nil {
		shutdownErr = srv.Shutdown(ctx)
	}
	return xerrors.Combine(shutdownErr, m.provider.Shutdown(ctx))
}
