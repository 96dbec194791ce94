package ratelimit

import "github.com/ceyewan/flake/xerrors"

var (
	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.New("ratelimit: connector is nil")

	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: key is empty")

	// ErrInvalidLimit 限流规则或令牌数无效
	ErrInvalidLimit = xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: invalid limit")

	// ErrClosed 限流器已关闭
	ErrClosed = xerrors.New("ratelimit: limiter closed")
)

func checkArgs(key string, limit Limit, n int) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if !limit.valid() {
		return xerrors.Wrapf(ErrInvalidLimit, "rate=%v burst=%d", limit.Rate, limit.Burst)
	}
	if n <= 0 {
		return xerrors.Wrapf(ErrInvalidLimit, "n=%d", n)
	}
	return nil
}
