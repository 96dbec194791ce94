package trace

// ID 生成相关的 Span 属性
const (
	AttrIDGenWorkerID     = "idgen.worker_id"
	AttrIDGenDatacenterID = "idgen.datacenter_id"
	AttrIDGenCount        = "idgen.count"
	AttrIDGenClockDrift   = "idgen.clock_drift_ms"
)

const (
	SpanNameIDGenNext   = "idgen.next"
	SpanNameIDGenBatch  = "idgen.batch"
	SpanNameIDGenDecode = "idgen.decode"
)

// TracerName 本项目默认的 instrumentation 名称
const TracerName = "github.com/ceyewan/flake"
