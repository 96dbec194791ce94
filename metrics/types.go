// Package metrics 提供基于 OpenTelemetry 的指标组件，以 Prometheus 格式暴露。
//
//	meter, _ := metrics.New(&metrics.Config{Enabled: true, ServiceName: "flake"})
//	defer meter.Shutdown(ctx)
//
//	generated, _ := meter.Counter("idgen_generated_total", "Generated IDs")
//	generated.Inc(ctx, metrics.L("worker_id", "1"))
//
// Meter 与其创建的指标均可并发使用。
package metrics

import "context"

// Counter 只增不减的累计值
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可增可减的瞬时值
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 记录分布，例如请求耗时
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标工厂
type Meter interface {
	Counter(name, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name, desc string, opts ...MetricOption) (Histogram, error)
	// Shutdown 刷新并停止导出，同时关闭内置的 HTTP 服务
	Shutdown(ctx context.Context) error
}

// Label 指标维度。避免使用 ID、请求号等高基数值。
type Label struct {
	Key   string
	Value string
}

// L 构造 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// MetricOption 单个指标的选项
type MetricOption func(*MetricOptions)

type MetricOptions struct {
	Unit    string
	Buckets []float64 // 仅 Histogram
}

// WithUnit 设置单位，建议使用 UCUM，如 "s"、"By"
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) { o.Unit = unit }
}

// WithBuckets 设置 Histogram 的显式桶边界
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}

func applyMetricOptions(opts []MetricOption) *MetricOptions {
	o := &MetricOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
