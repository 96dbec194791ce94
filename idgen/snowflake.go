// Package idgen 提供 64 位 Snowflake ID 生成器与 UUID 生成器。
//
// Snowflake 在单个实例内保证唯一且单调不减，跨实例的唯一性依赖部署时为每个实例
// 分配不同的 (datacenter_id, worker_id)。
//
//	gen, err := idgen.New(idgen.DefaultConfig(1, 1), idgen.WithLogger(logger))
//	if err != nil {
//		return err // errors.Is(err, idgen.ErrInvalidConfiguration)
//	}
//	id, err := gen.NextID()
//	if errors.Is(err, idgen.ErrClockMovedBackward) {
//		// 稍后重试
//	}
package idgen

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/xerrors"
)

// Snowflake 雪花算法生成器，所有方法并发安全
type Snowflake struct {
	workerID int64
	dcID     int64
	epoch    int64
	maxWait  time.Duration // 0 表示不等待

	mu       sync.Mutex
	lastTime int64 // 相对 epoch 的毫秒，-1 表示尚未生成
	sequence int64

	clock   Clock
	logger  clog.Logger
	metrics *generatorMetrics
}

// Decoded 解码后的 ID
type Decoded struct {
	ID ID `json:"id"`
	Parts
	Time time.Time `json:"time"`
}

// New 校验配置并创建生成器，不占用任何外部资源
func New(cfg *Config, opts ...Option) (*Snowflake, error) {
	if cfg == nil {
		return nil, invalidConfig("config_nil", "config is nil")
	}
	o := applyOptions(opts)

	c := *cfg
	c.setDefaults()
	if err := c.validate(o.Clock.Now()); err != nil {
		return nil, err
	}

	m, err := newGeneratorMetrics(o.Meter, c.WorkerID, c.DatacenterID)
	if err != nil {
		return nil, xerrors.Wrap(err, "idgen: create metrics")
	}

	s := &Snowflake{
		workerID: c.WorkerID,
		dcID:     c.DatacenterID,
		epoch:    c.Epoch,
		maxWait:  max(c.MaxBackwardWait, 0),
		lastTime: -1,
		clock:    o.Clock,
		logger:   o.Logger.WithNamespace("idgen"),
		metrics:  m,
	}

	s.logger.Info("snowflake generator created",
		clog.Int64("worker_id", s.workerID),
		clog.Int64("datacenter_id", s.dcID),
		clog.Int64("epoch", s.epoch),
		clog.Duration("max_backward_wait", s.maxWait),
	)
	return s, nil
}

// NextID 生成下一个 ID。
//
// 时钟回拨不超过 MaxBackwardWait 时阻塞等待时钟追上，否则返回 *ClockError；
// 同一毫秒内序列号耗尽时自旋等待下一毫秒。
func (s *Snowflake) NextID() (ID, error) {
	s.mu.Lock()
	id, err := s.nextLocked()
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	s.metrics.addGenerated(1)
	return id, nil
}

// NextIDContext 进入临界区前检查 ctx，临界区内的等待不可取消
func (s *Snowflake) NextIDContext(ctx context.Context) (ID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.NextID()
}

// Next 返回 int64 形式的 ID，出错时返回 -1
func (s *Snowflake) Next() int64 {
	id, err := s.NextID()
	if err != nil {
		return -1
	}
	return id.Int64()
}

// NextString 返回十进制字符串形式的 ID
func (s *Snowflake) NextString() (string, error) {
	id, err := s.NextID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NextBatch 在一次加锁内生成 n 个 ID。出错时返回已生成的部分与错误。
func (s *Snowflake) NextBatch(n int) ([]ID, error) {
	if n <= 0 {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "idgen: batch size %d", n)
	}

	ids := make([]ID, 0, n)
	var err error

	s.mu.Lock()
	for range n {
		var id ID
		if id, err = s.nextLocked(); err != nil {
			break
		}
		ids = append(ids, id)
	}
	s.mu.Unlock()

	s.metrics.addGenerated(len(ids))
	return ids, err
}

// Decode 使用本生成器的 Epoch 解码 ID
func (s *Snowflake) Decode(id ID) Decoded {
	return Decoded{ID: id, Parts: id.Decompose(), Time: id.Time(s.epoch)}
}

func (s *Snowflake) WorkerID() int64     { return s.workerID }
func (s *Snowflake) DatacenterID() int64 { return s.dcID }
func (s *Snowflake) Epoch() int64        { return s.epoch }

// ========================================
// 临界区 (Critical Section)
// ========================================

// nextLocked 调用方必须持有 s.mu
func (s *Snowflake) nextLocked() (ID, error) {
	now, err := s.tick()
	if err != nil {
		return 0, err
	}

	if now < s.lastTime {
		if now, err = s.waitClock(now); err != nil {
			return 0, err
		}
	}

	if now == s.lastTime {
		if s.sequence == MaxSequence {
			s.metrics.sequenceOverflow()
			if now, err = s.waitNextMilli(); err != nil {
				return 0, err
			}
			s.sequence = 0
		} else {
			s.sequence++
		}
	} else {
		s.sequence = 0
	}

	s.lastTime = now
	return pack(now, s.dcID, s.workerID, s.sequence), nil
}

// tick 读取相对 epoch 的当前毫秒
func (s *Snowflake) tick() (int64, error) {
	now := s.clock.Now().UnixMilli() - s.epoch
	if now < 0 || now > MaxTimestamp {
		return 0, xerrors.Wrapf(ErrTimestampOverflow, "elapsed %dms since epoch %d", now, s.epoch)
	}
	return now, nil
}

// waitClock 处理时钟回拨：幅度在容忍范围内时睡眠后重新采样，仍落后则拒绝
func (s *Snowflake) waitClock(now int64) (int64, error) {
	drift := time.Duration(s.lastTime-now) * time.Millisecond
	if drift > s.maxWait {
		return 0, s.rejectClock(now)
	}

	s.clock.Sleep(drift)
	now, err := s.tick()
	if err != nil {
		return 0, err
	}
	if now < s.lastTime {
		return 0, s.rejectClock(now)
	}

	s.metrics.clockBackward(outcomeWaited)
	s.logger.Debug("waited out clock rollback", clog.Duration("drift", drift))
	return now, nil
}

func (s *Snowflake) rejectClock(now int64) error {
	err := &ClockError{
		Last:  s.lastTime,
		Now:   now,
		Drift: time.Duration(s.lastTime-now) * time.Millisecond,
	}
	s.metrics.clockBackward(outcomeRejected)
	s.logger.Warn("clock moved backward",
		clog.Int64("last", err.Last),
		clog.Int64("now", err.Now),
		clog.Duration("drift", err.Drift),
		clog.Duration("max_wait", s.maxWait),
	)
	return err
}

// waitNextMilli 序列号耗尽后自旋到下一毫秒，每次采样之间让出调度。
// 自旋期间发生回拨按 waitClock 的规则处理，超出容忍范围直接返回 ClockError。
func (s *Snowflake) waitNextMilli() (int64, error) {
	for {
		runtime.Gosched()
		now, err := s.tick()
		if err != nil {
			return 0, err
		}
		if now < s.lastTime {
			if now, err = s.waitClock(now); err != nil {
				return 0, err
			}
		}
		if now > s.lastTime {
			return now, nil
		}
	}
}
