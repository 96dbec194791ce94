package idgen

import (
	"fmt"
	"time"

	"github.com/ceyewan/flake/xerrors"
)

var (
	// ErrInvalidConfiguration worker_id / datacenter_id / epoch 非法，构造时返回
	ErrInvalidConfiguration = xerrors.Wrap(xerrors.ErrInvalidInput, "idgen: invalid configuration")

	// ErrClockMovedBackward 系统时钟回拨，调用方可稍后重试
	ErrClockMovedBackward = xerrors.Wrap(xerrors.ErrUnavailable, "idgen: clock moved backward")

	// ErrTimestampOverflow 当前时间早于 Epoch 或超出 41 bit 范围
	ErrTimestampOverflow = xerrors.Wrap(xerrors.ErrUnavailable, "idgen: timestamp out of range")

	// ErrInvalidID ID 无法解析或字段越界
	ErrInvalidID = xerrors.Wrap(xerrors.ErrInvalidInput, "idgen: invalid id")
)

// ClockError 时钟回拨的详细信息，errors.Is(err, ErrClockMovedBackward) 成立。
// Last 与 Now 均为相对 Epoch 的毫秒数。
type ClockError struct {
	Last  int64
	Now   int64
	Drift time.Duration
}

func (e *ClockError) Error() string {
	return fmt.Sprintf("%v: drift %v (last=%d now=%d)", ErrClockMovedBackward, e.Drift, e.Last, e.Now)
}

func (e *ClockError) Is(target error) bool {
	return target == ErrClockMovedBackward || target == xerrors.ErrUnavailable
}

func invalidConfig(code, format string, args ...any) error {
	return xerrors.WithCode(xerrors.Wrapf(ErrInvalidConfiguration, format, args...), code)
}

func invalidID(format string, args ...any) error {
	return xerrors.Wrapf(ErrInvalidID, format, args...)
}
