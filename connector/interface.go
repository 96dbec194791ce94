// Package connector 管理外部存储的连接池：Redis 缓存与 GORM 关系库（PostgreSQL、MySQL、SQLite）。
//
// 约定：
//   - NewXXX 只校验配置，Connect 时才真正建立连接，Connect 幂等
//   - 建连失败返回的错误满足 errors.Is(err, ErrConnection)，并携带底层传输层的错误信息
//   - Connector 拥有连接的生命周期，组件只借用客户端，应用层按 LIFO 顺序 Close
//
//	conn, _ := connector.NewRedis(&connector.RedisConfig{URL: "redis://:pass@127.0.0.1:6379/0"})
//	if err := conn.Connect(ctx); err != nil {
//		return err // errors.Is(err, connector.ErrConnection)
//	}
//	defer conn.Close()
//	conn.GetClient().Set(ctx, "k", "v", 0)
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Connector 所有连接器的通用行为，方法均并发安全。
type Connector interface {
	// Connect 建立连接并验证可用性，重复调用直接返回 nil
	Connect(ctx context.Context) error
	// Close 释放连接，可重复调用
	Close() error
	// HealthCheck 主动探测连接，并刷新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error
	IsHealthy() bool
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。Connect 之前或 Close 之后可能返回 nil。
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

// RedisConnector Redis 连接池
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// GormConnector 基于 GORM 的关系库连接池
type GormConnector interface {
	TypedConnector[*gorm.DB]
	// Dialect 返回 postgres|mysql|sqlite
	Dialect() string
}
