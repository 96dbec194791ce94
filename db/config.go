package db

import (
	"time"

	"github.com/ceyewan/flake/xerrors"
)

// Config DB 组件配置
type Config struct {
	// SlowThreshold 慢查询阈值 (默认: 200ms)
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`

	// EnableTracing 注册 otelgorm 插件
	EnableTracing bool `mapstructure:"enable_tracing" yaml:"enable_tracing"`

	// 是否开启分片特性
	EnableSharding bool `mapstructure:"enable_sharding" yaml:"enable_sharding"`

	// 分片规则，不同表组可使用不同规则
	ShardingRules []ShardingRule `mapstructure:"sharding_rules" yaml:"sharding_rules"`
}

// ShardingRule 分片规则
type ShardingRule struct {
	// 分片键 (例如 "user_id")
	ShardingKey string `mapstructure:"sharding_key" yaml:"sharding_key"`

	// 分片数量 (例如 64)
	NumberOfShards uint `mapstructure:"number_of_shards" yaml:"number_of_shards"`

	// 逻辑表名 (例如 ["orders", "audit_logs"])
	Tables []string `mapstructure:"tables" yaml:"tables"`
}

func (c *Config) setDefaults() {
	if c.SlowThreshold == 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
}

func (c *Config) validate() error {
	if c.SlowThreshold < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "slow threshold cannot be negative")
	}
	if c.EnableSharding && len(c.ShardingRules) == 0 {
		return xerrors.Wrap(ErrInvalidConfig, "sharding enabled but no rules provided")
	}

	for _, rule := range c.ShardingRules {
		if rule.ShardingKey == "" {
			return xerrors.Wrap(ErrInvalidConfig, "sharding key cannot be empty")
		}
		if rule.NumberOfShards == 0 {
			return xerrors.Wrap(ErrInvalidConfig, "number of shards must be greater than 0")
		}
		if len(rule.Tables) == 0 {
			return xerrors.Wrap(ErrInvalidConfig, "sharding tables cannot be empty")
		}
		for _, table := range rule.Tables {
			if table == "" {
				return xerrors.Wrap(ErrInvalidConfig, "sharding table name cannot be empty")
			}
		}
	}
	return nil
}
