// Package ratelimit 提供令牌桶限流，支持单机与分布式两种模式。
//
//   - 单机模式：基于 golang.org/x/time/rate，按 key 维护内存限流器，空闲后自动清理
//   - 分布式模式：基于 Redis + Lua，多实例共享同一令牌桶
//
// 用于保护批量发号等开销较大的接口：
//
//	limiter, _ := ratelimit.NewStandalone(nil, ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	r.GET("/v1/ids", ratelimit.GinMiddleware(limiter, nil,
//		func(*gin.Context) ratelimit.Limit { return ratelimit.Limit{Rate: 1000, Burst: 2000} },
//		ratelimit.WithCost(batchSize),
//	), handler)
package ratelimit

import (
	"context"
	"time"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/connector"
	"github.com/ceyewan/flake/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Limit 令牌桶规则
type Limit struct {
	Rate  float64 `mapstructure:"rate" yaml:"rate"`   // 每秒生成的令牌数
	Burst int     `mapstructure:"burst" yaml:"burst"` // 桶容量
}

func (l Limit) valid() bool { return l.Rate > 0 && l.Burst > 0 }

// Limiter 限流器，方法均并发安全
type Limiter interface {
	// Allow 尝试获取 1 个令牌，不阻塞。err 只表示系统错误。
	Allow(ctx context.Context, key string, limit Limit) (bool, error)

	// AllowN 尝试一次获取 n 个令牌
	AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error)

	// Close 释放后台资源
	Close() error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// StandaloneConfig 单机限流配置
type StandaloneConfig struct {
	// CleanupInterval 清理空闲限流器的间隔 (默认: 1m)
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`

	// IdleTimeout 空闲超过该时长的限流器被回收 (默认: 5m)
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

func (c *StandaloneConfig) setDefaults() {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// DistributedConfig 分布式限流配置
type DistributedConfig struct {
	// Prefix Redis Key 前缀 (默认: "flake:ratelimit:")
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

func (c *DistributedConfig) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "flake:ratelimit:"
	}
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// NewStandalone 创建单机限流器，cfg 为 nil 时使用默认配置
func NewStandalone(cfg *StandaloneConfig, opts ...Option) (Limiter, error) {
	c := StandaloneConfig{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()

	o := applyOptions(opts)
	return newStandalone(&c, o)
}

// NewDistributed 创建分布式限流器，redisConn 须已 Connect
func NewDistributed(redisConn connector.RedisConnector, cfg *DistributedConfig, opts ...Option) (Limiter, error) {
	if redisConn == nil {
		return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
	}
	if redisConn.GetClient() == nil {
		return nil, xerrors.Wrap(connector.ErrNotConnected, "ratelimit: redis")
	}

	c := DistributedConfig{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()

	o := applyOptions(opts)
	o.logger.Info("distributed rate limiter created", clog.String("prefix", c.Prefix))
	return newDistributed(&c, redisConn, o)
}
