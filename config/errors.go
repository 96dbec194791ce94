package config

import "github.com/ceyewan/flake/xerrors"

var (
	ErrValidationFailed = xerrors.New("config: validation failed")
	ErrFileNotFound     = xerrors.Wrap(xerrors.ErrNotFound, "config: file")
)

// IsNotFound 判断是否为配置文件不存在
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}
