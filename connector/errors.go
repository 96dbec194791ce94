package connector

import (
	"fmt"

	"github.com/ceyewan/flake/xerrors"
)

var (
	ErrNotConnected = xerrors.New("connector: not connected")
	ErrClientNil    = xerrors.New("connector: client is nil")
	ErrConnection   = xerrors.New("connector: connection failed")
	ErrConfig       = xerrors.New("connector: invalid config")
	ErrHealthCheck  = xerrors.New("connector: health check failed")
)

// ConnectionError 建连失败，Err 为底层驱动返回的传输层错误。
type ConnectionError struct {
	Kind string // redis|postgres|mysql|sqlite
	Name string
	Addr string // 目标地址，不含凭据
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connector[%s] %s: connection failed: %v", e.Kind, e.Name, e.Addr, e.Err)
}

// Is 使 errors.Is(err, ErrConnection) 成立
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

func (e *ConnectionError) Unwrap() error { return e.Err }

func connectionError(kind, name, addr string, err error) error {
	return &ConnectionError{Kind: kind, Name: name, Addr: addr, Err: err}
}

func configError(kind, format string, args ...any) error {
	return xerrors.Wrapf(ErrConfig, "%s: %s", kind, fmt.Sprintf(format, args...))
}
