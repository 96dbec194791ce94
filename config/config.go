package config

import (
	"context"
	"strings"

	"github.com/ceyewan/flake/clog"
)

// Config 加载器配置
type Config struct {
	Name      string         // 配置文件名（不含扩展名），默认 config
	Paths     []string       // 搜索路径，默认 [".", "./configs"]
	File      string         // 显式指定的配置文件，设置后忽略 Name/Paths
	FileType  string         // yaml|json|toml，默认 yaml
	EnvPrefix string         // 环境变量前缀，默认 FLAKE
	Defaults  map[string]any // 默认值，优先级最低
	Logger    clog.Logger
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./configs"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "FLAKE"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	if c.Logger == nil {
		c.Logger = clog.Discard()
	}
}

// Option 配置选项
type Option func(*Config)

func WithConfigName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithConfigPaths 覆盖默认搜索路径
func WithConfigPaths(paths ...string) Option {
	return func(c *Config) { c.Paths = paths }
}

// WithConfigFile 指定配置文件路径，类型取自扩展名
func WithConfigFile(path string) Option {
	return func(c *Config) { c.File = path }
}

func WithConfigType(typ string) Option {
	return func(c *Config) { c.FileType = typ }
}

func WithEnvPrefix(prefix string) Option {
	return func(c *Config) { c.EnvPrefix = prefix }
}

// WithDefaults 设置默认值，key 使用 "." 分隔的路径
func WithDefaults(defaults map[string]any) Option {
	return func(c *Config) {
		if c.Defaults == nil {
			c.Defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			c.Defaults[k] = v
		}
	}
}

func WithLogger(l clog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// New 创建加载器，需要调用 Load 后才能读取配置。
func New(opts ...Option) (Loader, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.setDefaults()
	return newLoader(cfg), nil
}

// MustLoad 创建并加载配置，失败时 panic，仅用于进程启动。
func MustLoad(ctx context.Context, opts ...Option) Loader {
	l, err := New(opts...)
	if err != nil {
		panic(err)
	}
	if err := l.Load(ctx); err != nil {
		panic(err)
	}
	return l
}
