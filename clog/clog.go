// Package clog 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - Logger 接口不暴露底层 slog 实现
//   - 层级命名空间、Context 字段提取、OpenTelemetry TraceID 关联
//   - 输出到 stdout/stderr、指定文件，或按天滚动的日志文件
//   - 进程级初始化 Setup，只生效一次
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json"})
//	logger.Info("id generated", clog.Int64("id", id))
//
// 进程入口：
//
//	logger, _ := clog.Setup(debug, "/var/log/flake", "flake")
//	defer logger.Flush()
package clog

import (
	"fmt"
	"sync"
)

// New 根据配置创建 Logger，config 为 nil 时使用开发环境默认配置。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("")
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return newLogger(config, applyOptions(opts...))
}

var (
	setupOnce   sync.Once
	setupLogger Logger
	setupErr    error

	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// Setup 初始化进程级日志，重复调用返回第一次的结果。
//
// debug 为 true 时输出彩色文本到控制台，级别为 debug；
// 否则以 JSON 写入 dir 下按天滚动的 <prefix>.YYYY-MM-DD 文件，级别为 info。
// 成功后该 Logger 同时成为 Default()。
func Setup(debug bool, dir, prefix string, opts ...Option) (Logger, error) {
	setupOnce.Do(func() {
		cfg := NewProdDefaultConfig(dir, prefix)
		if debug {
			cfg = NewDevDefaultConfig("")
		}
		setupLogger, setupErr = New(cfg, opts...)
		if setupErr == nil {
			SetDefault(setupLogger)
		}
	})
	return setupLogger, setupErr
}

// SetDefault 替换进程默认 Logger。
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default 返回进程默认 Logger，未初始化时返回 stdout 上的 info 级别 Logger。
func Default() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		l, err := New(&Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			return Discard()
		}
		defaultLogger = l
	}
	return defaultLogger
}
