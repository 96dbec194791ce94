package db

import "github.com/ceyewan/flake/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Wrap(xerrors.ErrInvalidInput, "db: invalid config")

	// ErrConnectorRequired 未提供连接器
	ErrConnectorRequired = xerrors.New("db: connector is required")
)
