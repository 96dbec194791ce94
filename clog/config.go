package clog

import (
	"fmt"
	"strings"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// 特殊的 Output 取值
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputRotate = "rotate"
	outputBuffer = "buffer"
)

// Config 日志配置
//
//	Level:  debug|info|warn|error|fatal
//	Format: json|console
//	Output: stdout|stderr|rotate|<文件路径>
//
// Output 为 rotate 时，日志写入 Dir 目录下的 <Prefix>.YYYY-MM-DD，
// 每天零点切换文件，MaxAge 大于 0 时清理更早的文件（单位：天）。
type Config struct {
	Level       string `json:"level" yaml:"level" mapstructure:"level"`
	Format      string `json:"format" yaml:"format" mapstructure:"format"`
	Output      string `json:"output" yaml:"output" mapstructure:"output"`
	EnableColor bool   `json:"enableColor" yaml:"enableColor" mapstructure:"enable_color"`
	AddSource   bool   `json:"addSource" yaml:"addSource" mapstructure:"add_source"`
	SourceRoot  string `json:"sourceRoot" yaml:"sourceRoot" mapstructure:"source_root"`

	Dir    string `json:"dir" yaml:"dir" mapstructure:"dir"`
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	MaxAge int    `json:"maxAge" yaml:"maxAge" mapstructure:"max_age"`
}

// NewDevDefaultConfig 开发环境配置：彩色控制台、debug 级别、带调用位置。
func NewDevDefaultConfig(sourceRoot string) *Config {
	return &Config{
		Level:       "debug",
		Format:      "console",
		Output:      OutputStdout,
		EnableColor: true,
		AddSource:   true,
		SourceRoot:  sourceRoot,
	}
}

// NewProdDefaultConfig 生产环境配置：JSON、info 级别、按天滚动到 dir。
func NewProdDefaultConfig(dir, prefix string) *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: OutputRotate,
		Dir:    dir,
		Prefix: prefix,
	}
}

func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = OutputStdout
	}

	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format: %s, must be json or console", c.Format)
	}

	if strings.EqualFold(c.Output, OutputRotate) {
		if c.Dir == "" {
			return fmt.Errorf("rotate output requires dir")
		}
		if c.Prefix == "" {
			c.Prefix = "flake"
		}
		if c.MaxAge < 0 {
			return fmt.Errorf("invalid max age: %d", c.MaxAge)
		}
	}
	return nil
}
