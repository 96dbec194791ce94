package idgen

import (
	"context"
	"strconv"

	"github.com/ceyewan/flake/metrics"
)

// 指标名称
const (
	MetricGenerated        = "idgen_generated_total"
	MetricClockBackward    = "idgen_clock_backward_total"
	MetricSequenceOverflow = "idgen_sequence_overflow_total"
)

// 时钟回拨的处理结果
const (
	outcomeWaited   = "waited"
	outcomeRejected = "rejected"
)

type generatorMetrics struct {
	generated metrics.Counter
	backward  metrics.Counter
	overflow  metrics.Counter
	labels    []metrics.Label
}

func newGeneratorMetrics(m metrics.Meter, workerID, dcID int64) (*generatorMetrics, error) {
	generated, err := m.Counter(MetricGenerated, "Total number of snowflake IDs generated")
	if err != nil {
		return nil, err
	}
	backward, err := m.Counter(MetricClockBackward, "Clock rollbacks observed by the generator")
	if err != nil {
		return nil, err
	}
	overflow, err := m.Counter(MetricSequenceOverflow, "Times the per-millisecond sequence was exhausted")
	if err != nil {
		return nil, err
	}
	return &generatorMetrics{
		generated: generated,
		backward:  backward,
		overflow:  overflow,
		labels: []metrics.Label{
			metrics.L("worker_id", strconv.FormatInt(workerID, 10)),
			metrics.L("datacenter_id", strconv.FormatInt(dcID, 10)),
		},
	}, nil
}

func (m *generatorMetrics) addGenerated(n int) {
	if n > 0 {
		m.generated.Add(context.Background(), float64(n), m.labels...)
	}
}

func (m *generatorMetrics) clockBackward(outcome string) {
	m.backward.Inc(context.Background(), append(m.labels, metrics.L("outcome", outcome))...)
}

func (m *generatorMetrics) sequenceOverflow() {
	m.overflow.Inc(context.Background(), m.labels...)
}
