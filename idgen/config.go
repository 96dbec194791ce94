package idgen

import (
	"time"
)

// Config Snowflake 生成器配置
//
//	idgen:
//	  worker_id: 1
//	  datacenter_id: 1
//	  epoch: 1609459200000
//	  max_backward_wait: 5ms
//
// 集群内每个存活的生成器必须持有唯一的 (datacenter_id, worker_id)，运行时不做校验。
type Config struct {
	// WorkerID 节点 ID [0, 31]
	WorkerID int64 `mapstructure:"worker_id" yaml:"worker_id" json:"worker_id"`

	// DatacenterID 数据中心 ID [0, 31]
	DatacenterID int64 `mapstructure:"datacenter_id" yaml:"datacenter_id" json:"datacenter_id"`

	// Epoch 起始时间，Unix 毫秒 (默认: DefaultEpoch)
	Epoch int64 `mapstructure:"epoch" yaml:"epoch" json:"epoch"`

	// MaxBackwardWait 可容忍并等待的时钟回拨幅度 (默认: 5ms)，负数表示不等待直接报错
	MaxBackwardWait time.Duration `mapstructure:"max_backward_wait" yaml:"max_backward_wait" json:"max_backward_wait"`
}

// DefaultConfig 返回使用默认 Epoch 的配置
func DefaultConfig(workerID, datacenterID int64) *Config {
	return &Config{
		WorkerID:        workerID,
		DatacenterID:    datacenterID,
		Epoch:           DefaultEpoch,
		MaxBackwardWait: 5 * time.Millisecond,
	}
}

func (c *Config) setDefaults() {
	if c.Epoch == 0 {
		c.Epoch = DefaultEpoch
	}
	if c.MaxBackwardWait == 0 {
		c.MaxBackwardWait = 5 * time.Millisecond
	}
}

func (c *Config) validate(now time.Time) error {
	if c.WorkerID < 0 || c.WorkerID > MaxWorkerID {
		return invalidConfig("worker_id_out_of_range", "worker_id %d not in [0, %d]", c.WorkerID, MaxWorkerID)
	}
	if c.DatacenterID < 0 || c.DatacenterID > MaxDatacenterID {
		return invalidConfig("datacenter_id_out_of_range", "datacenter_id %d not in [0, %d]", c.DatacenterID, MaxDatacenterID)
	}
	if c.Epoch < 0 {
		return invalidConfig("epoch_negative", "epoch %d is negative", c.Epoch)
	}
	if c.Epoch > now.UnixMilli() {
		return invalidConfig("epoch_in_future", "epoch %d is after now %d", c.Epoch, now.UnixMilli())
	}
	return nil
}
