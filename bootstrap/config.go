package bootstrap

import (
	"context"

	"github.com/ceyewan/flake/config"
	"github.com/ceyewan/flake/connector"
	"github.com/ceyewan/flake/db"
	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/metrics"
	"github.com/ceyewan/flake/ratelimit"
	"github.com/ceyewan/flake/server"
	"github.com/ceyewan/flake/trace"
	"github.com/ceyewan/flake/xerrors"
)

// Config 进程配置，对应配置文件的顶层结构。
// Postgres、MySQL、SQLite 至多设置一个；Redis 可选。
type Config struct {
	App   AppConfig    `mapstructure:"app" yaml:"app"`
	Log   LogConfig    `mapstructure:"log" yaml:"log"`
	IDGen idgen.Config `mapstructure:"idgen" yaml:"idgen"`

	Postgres *connector.PostgreSQLConfig `mapstructure:"postgres" yaml:"postgres"`
	MySQL    *connector.MySQLConfig      `mapstructure:"mysql" yaml:"mysql"`
	SQLite   *connector.SQLiteConfig     `mapstructure:"sqlite" yaml:"sqlite"`
	Redis    *connector.RedisConfig      `mapstructure:"redis" yaml:"redis"`
	DB       db.Config                   `mapstructure:"db" yaml:"db"`

	Metrics   metrics.Config  `mapstructure:"metrics" yaml:"metrics"`
	Trace     trace.Config    `mapstructure:"trace" yaml:"trace"`
	Server    server.Config   `mapstructure:"server" yaml:"server"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
}

// AppConfig 进程标识
type AppConfig struct {
	// Name 服务名，作为日志前缀、Span 与指标的 service (默认: "flake")
	Name        string `mapstructure:"name" yaml:"name"`
	Version     string `mapstructure:"version" yaml:"version"`
	UUIDVersion string `mapstructure:"uuid_version" yaml:"uuid_version"` // v4|v7，默认 v7
}

// LogConfig 进程级日志
type LogConfig struct {
	// Debug 为 true 时输出到控制台，否则写入 Dir 下按天滚动的文件
	Debug bool   `mapstructure:"debug" yaml:"debug"`
	Dir   string `mapstructure:"dir" yaml:"dir"`
	// Prefix 日志文件名前缀 (默认: App.Name)
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// RateLimitConfig 批量接口限流器的后端，规则在 server.batch_limit
type RateLimitConfig struct {
	// Mode standalone|distributed (默认: standalone)，distributed 需要 Redis
	Mode        string                      `mapstructure:"mode" yaml:"mode"`
	Standalone  ratelimit.StandaloneConfig  `mapstructure:"standalone" yaml:"standalone"`
	Distributed ratelimit.DistributedConfig `mapstructure:"distributed" yaml:"distributed"`
}

const (
	RateLimitStandalone  = "standalone"
	RateLimitDistributed = "distributed"
)

func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "flake"
	}
	if c.Log.Prefix == "" {
		c.Log.Prefix = c.App.Name
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.App.Name
	}
	if c.Metrics.Version == "" {
		c.Metrics.Version = c.App.Version
	}
	if c.Trace.ServiceName == "" {
		c.Trace.ServiceName = c.App.Name
	}
	if c.Server.ServiceName == "" {
		c.Server.ServiceName = c.App.Name
	}
	if c.RateLimit.Mode == "" {
		c.RateLimit.Mode = RateLimitStandalone
	}
}

func (c *Config) validate() error {
	n := 0
	for _, set := range []bool{c.Postgres != nil, c.MySQL != nil, c.SQLite != nil} {
		if set {
			n++
		}
	}
	if n > 1 {
		return xerrors.WithCode(
			xerrors.Wrap(xerrors.ErrInvalidInput, "bootstrap: postgres, mysql and sqlite are mutually exclusive"),
			"multiple_databases")
	}

	switch c.RateLimit.Mode {
	case RateLimitStandalone:
	case RateLimitDistributed:
		if c.Redis == nil {
			return xerrors.WithCode(
				xerrors.Wrap(xerrors.ErrInvalidInput, "bootstrap: distributed rate limiting requires redis"),
				"redis_required")
		}
	default:
		return xerrors.WithCode(
			xerrors.Wrapf(xerrors.ErrInvalidInput, "bootstrap: unknown ratelimit mode %q", c.RateLimit.Mode),
			"ratelimit_mode_unsupported")
	}
	return nil
}

// Load 读取配置文件、.env 与 FLAKE_ 前缀的环境变量。path 为空时在默认路径中查找 config.yaml。
func Load(ctx context.Context, path string, opts ...config.Option) (*Config, error) {
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	loader, err := config.New(opts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: create config loader")
	}
	if err := loader.Load(ctx); err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: load config")
	}

	var cfg Config
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: decode config")
	}
	return &cfg, nil
}
