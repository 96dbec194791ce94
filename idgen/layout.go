package idgen

// ========================================
// 位布局 (Bit Layout)
// ========================================
//
//	| 1 bit 保留 | 41 bit 时间戳 (ms) | 5 bit 数据中心 | 5 bit 节点 | 12 bit 序列号 |
//
// 时间戳相对 Epoch，41 bit 约可使用 69 年。
const (
	SequenceBits     = 12
	WorkerIDBits     = 5
	DatacenterIDBits = 5
	TimestampBits    = 41

	WorkerIDShift     = SequenceBits
	DatacenterIDShift = SequenceBits + WorkerIDBits
	TimestampShift    = SequenceBits + WorkerIDBits + DatacenterIDBits

	MaxSequence     = 1<<SequenceBits - 1
	MaxWorkerID     = 1<<WorkerIDBits - 1
	MaxDatacenterID = 1<<DatacenterIDBits - 1
	MaxTimestamp    = 1<<TimestampBits - 1

	// DefaultEpoch 2021-01-01T00:00:00Z
	DefaultEpoch int64 = 1609459200000
)

// Parts ID 的各个字段，Timestamp 为相对 Epoch 的毫秒数
type Parts struct {
	Timestamp    int64 `json:"timestamp"`
	DatacenterID int64 `json:"datacenter_id"`
	WorkerID     int64 `json:"worker_id"`
	Sequence     int64 `json:"sequence"`
}

// Compose 按位布局拼装 ID，任一字段越界返回 ErrInvalidID
func Compose(p Parts) (ID, error) {
	switch {
	case p.Timestamp < 0 || p.Timestamp > MaxTimestamp:
		return 0, invalidID("timestamp %d out of range", p.Timestamp)
	case p.DatacenterID < 0 || p.DatacenterID > MaxDatacenterID:
		return 0, invalidID("datacenter_id %d out of range", p.DatacenterID)
	case p.WorkerID < 0 || p.WorkerID > MaxWorkerID:
		return 0, invalidID("worker_id %d out of range", p.WorkerID)
	case p.Sequence < 0 || p.Sequence > MaxSequence:
		return 0, invalidID("sequence %d out of range", p.Sequence)
	}
	return pack(p.Timestamp, p.DatacenterID, p.WorkerID, p.Sequence), nil
}

func pack(ts, dc, worker, seq int64) ID {
	return ID(uint64(ts)<<TimestampShift |
		uint64(dc)<<DatacenterIDShift |
		uint64(worker)<<WorkerIDShift |
		uint64(seq))
}
