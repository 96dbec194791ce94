package metrics

import "github.com/ceyewan/flake/clog"

// Option 配置 Meter 实例
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 注入 Logger，组件自动追加 metrics 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}
