package metrics

import "context"

// Discard 返回不记录任何数据的 Meter，作为各组件的默认值
func Discard() Meter { return discardMeter{} }

type discardMeter struct{}

func (discardMeter) Counter(string, string, ...MetricOption) (Counter, error)     { return discarded{}, nil }
func (discardMeter) Gauge(string, string, ...MetricOption) (Gauge, error)         { return discarded{}, nil }
func (discardMeter) Histogram(string, string, ...MetricOption) (Histogram, error) { return discarded{}, nil }
func (discardMeter) Shutdown(context.Context) error                               { return nil }

type discarded struct{}

func (discarded) Inc(context.Context, ...Label)             {}
func (discarded) Dec(context.Context, ...Label)             {}
func (discarded) Add(context.Context, float64, ...Label)    {}
func (discarded) Set(context.Context, float64, ...Label)    {}
func (discarded) Record(context.Context, float64, ...Label) {}
