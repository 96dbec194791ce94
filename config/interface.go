// Package config 提供基于 Viper 的配置加载与热更新。
//
// 优先级（高 → 低）：环境变量 > .env > 环境特定配置 config.<env>.yaml > 基础配置 > 默认值。
// 环境变量名为 <PREFIX>_<KEY>，key 中的 "." 替换为 "_"，例如 FLAKE_IDGEN_WORKER_ID。
// 环境名由 <PREFIX>_ENV 指定。
//
//	loader := config.MustLoad(ctx,
//		config.WithConfigPaths("./configs"),
//		config.WithEnvPrefix("FLAKE"),
//	)
//	var cfg bootstrap.Config
//	_ = loader.Unmarshal(&cfg)
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置，并开始监听文件变化
	Load(ctx context.Context) error
	Get(key string) any
	Unmarshal(v any) error
	UnmarshalKey(key string, v any) error
	// Watch 订阅 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // file
	Timestamp time.Time
}
