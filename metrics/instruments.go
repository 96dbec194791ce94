package metrics

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func (m *otelMeter) Counter(name, desc string, opts ...MetricOption) (Counter, error) {
	mo := applyMetricOptions(opts)
	copts := []metric.Float64CounterOption{metric.WithDescription(desc)}
	if mo.Unit != "" {
		copts = append(copts, metric.WithUnit(mo.Unit))
	}
	inst, err := m.meter.Float64Counter(name, copts...)
	if err != nil {
		return nil, err
	}
	return counter{inst}, nil
}

func (m *otelMeter) Gauge(name, desc string, opts ...MetricOption) (Gauge, error) {
	mo := applyMetricOptions(opts)
	gopts := []metric.Float64GaugeOption{metric.WithDescription(desc)}
	if mo.Unit != "" {
		gopts = append(gopts, metric.WithUnit(mo.Unit))
	}
	inst, err := m.meter.Float64Gauge(name, gopts...)
	if err != nil {
		return nil, err
	}
	return &gauge{inst: inst, current: map[string]float64{}}, nil
}

func (m *otelMeter) Histogram(name, desc string, opts ...MetricOption) (Histogram, error) {
	mo := applyMetricOptions(opts)
	hopts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if mo.Unit != "" {
		hopts = append(hopts, metric.WithUnit(mo.Unit))
	}
	if len(mo.Buckets) > 0 {
		hopts = append(hopts, metric.WithExplicitBucketBoundaries(mo.Buckets...))
	}
	inst, err := m.meter.Float64Histogram(name, hopts...)
	if err != nil {
		return nil, err
	}
	return histogram{inst}, nil
}

type counter struct{ inst metric.Float64Counter }

func (c counter) Inc(ctx context.Context, labels ...Label) { c.Add(ctx, 1, labels...) }

// Add 忽略负数，计数器只增不减
func (c counter) Add(ctx context.Context, val float64, labels ...Label) {
	if val < 0 {
		return
	}
	c.inst.Add(ctx, val, withLabels(labels))
}

// gauge 按标签组合缓存当前值，Inc/Dec 在缓存上累加后整体上报
type gauge struct {
	inst    metric.Float64Gauge
	mu      sync.Mutex
	current map[string]float64
}

func (g *gauge) Set(ctx context.Context, val float64, labels ...Label) {
	g.mu.Lock()
	g.current[seriesKey(labels)] = val
	g.mu.Unlock()
	g.inst.Record(ctx, val, withLabels(labels))
}

func (g *gauge) Inc(ctx context.Context, labels ...Label) { g.shift(ctx, 1, labels) }
func (g *gauge) Dec(ctx context.Context, labels ...Label) { g.shift(ctx, -1, labels) }

func (g *gauge) shift(ctx context.Context, delta float64, labels []Label) {
	k := seriesKey(labels)
	g.mu.Lock()
	v := g.current[k] + delta
	g.current[k] = v
	g.mu.Unlock()
	g.inst.Record(ctx, v, withLabels(labels))
}

type histogram struct{ inst metric.Float64Histogram }

func (h histogram) Record(ctx context.Context, val float64, labels ...Label) {
	h.inst.Record(ctx, val, withLabels(labels))
}

func withLabels(labels []Label) metric.MeasurementOption {
	kvs := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		kvs = append(kvs, attribute.String(l.Key, l.Value))
	}
	return metric.WithAttributes(kvs...)
}

func seriesKey(labels []Label) string {
	var b strings.Builder
	for i, l := range labels {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(l.Key)
		b.WriteByte('=')
		b.WriteString(l.Value)
	}
	return b.String()
}
