package server

import (
	"time"

	"github.com/ceyewan/flake/ratelimit"
	"github.com/ceyewan/flake/xerrors"
)

// Config HTTP 服务配置
type Config struct {
	// Addr 监听地址 (默认: ":8080")
	Addr string `mapstructure:"addr" yaml:"addr"`

	// ServiceName 用于 Span 与 RED 指标 (默认: "flake")
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"` // 默认 5s
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`       // 默认 10s

	// MaxBatch 单次批量请求的上限 (默认: 1000)
	MaxBatch int `mapstructure:"max_batch" yaml:"max_batch"`

	// BatchLimit 批量接口按客户端 IP 的令牌桶，每个 ID 消耗一个令牌。Rate 为 0 表示不限流。
	BatchLimit ratelimit.Limit `mapstructure:"batch_limit" yaml:"batch_limit"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ServiceName == "" {
		c.ServiceName = "flake"
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 5 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 1000
	}
}

func (c *Config) validate() error {
	if c.BatchLimit.Rate < 0 || c.BatchLimit.Burst < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "server: batch_limit must not be negative")
	}
	if c.BatchLimit.Rate > 0 && c.BatchLimit.Burst == 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "server: batch_limit.burst is required when rate is set")
	}
	return nil
}
