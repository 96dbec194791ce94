package metrics

import (
	"cmp"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ceyewan/flake/xerrors"
)

const (
	MetricHTTPServerRequestTotal    = "http_server_requests_total"
	MetricHTTPServerDurationSeconds = "http_server_request_duration_seconds"
)

// 发号请求通常在毫秒内完成，低段桶更密
var defaultHTTPDurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1}

// HTTPServerMetricsConfig HTTP 服务端 RED 指标配置，空字段取默认值
type HTTPServerMetricsConfig struct {
	Service             string
	RequestTotalName    string
	RequestDurationName string
	DurationBuckets     []float64
	StaticLabels        []Label // 附加到每个样本，如机房、实例
}

// DefaultHTTPServerMetricsConfig 使用标准指标名与默认分桶
func DefaultHTTPServerMetricsConfig(service string) *HTTPServerMetricsConfig {
	return &HTTPServerMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricHTTPServerRequestTotal,
		RequestDurationName: MetricHTTPServerDurationSeconds,
		DurationBuckets:     defaultHTTPDurationBuckets,
	}
}

// HTTPServerMetrics 请求数与耗时两项指标，标签包含 route、status_class 和 outcome
type HTTPServerMetrics struct {
	service      string
	requestTotal Counter
	duration     Histogram
	staticLabels []Label
}

// NewHTTPServerMetrics 在 m 上注册两项指标，cfg 为 nil 时使用默认配置
func NewHTTPServerMetrics(m Meter, cfg *HTTPServerMetricsConfig) (*HTTPServerMetrics, error) {
	if m == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "metrics: meter is nil")
	}
	c := DefaultHTTPServerMetricsConfig("")
	if cfg != nil {
		c = cfg
	}

	totalName := cmp.Or(strings.TrimSpace(c.RequestTotalName), MetricHTTPServerRequestTotal)
	durationName := cmp.Or(strings.TrimSpace(c.RequestDurationName), MetricHTTPServerDurationSeconds)
	buckets := c.DurationBuckets
	if len(buckets) == 0 {
		buckets = defaultHTTPDurationBuckets
	}

	total, err := m.Counter(totalName, "HTTP requests handled, by route and status class.")
	if err != nil {
		return nil, xerrors.Wrapf(err, "metrics: counter %s", totalName)
	}
	duration, err := m.Histogram(durationName, "HTTP request latency in seconds.", WithUnit("s"), WithBuckets(buckets))
	if err != nil {
		return nil, xerrors.Wrapf(err, "metrics: histogram %s", durationName)
	}

	return &HTTPServerMetrics{
		service:      cmp.Or(strings.TrimSpace(c.Service), "unknown"),
		requestTotal: total,
		duration:     duration,
		staticLabels: append([]Label(nil), c.StaticLabels...),
	}, nil
}

// Observe 记录一次请求，nil 接收者安全。route 应为路由模板而非原始路径。
func (m *HTTPServerMetrics) Observe(ctx context.Context, method string, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	labels := append(make([]Label, 0, len(m.staticLabels)+6), m.staticLabels...)
	labels = append(labels,
		L(LabelService, m.service),
		L(LabelOperation, OperationHTTPServer),
		L(LabelMethod, cmp.Or(strings.ToUpper(strings.TrimSpace(method)), http.MethodGet)),
		L(LabelRoute, cmp.Or(strings.TrimSpace(route), UnknownRoute)),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	)

	m.requestTotal.Inc(ctx, labels...)
	m.duration.Record(ctx, duration.Seconds(), labels...)
}
