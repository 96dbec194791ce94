// Package testkit 为各组件测试提供公共依赖：日志、指标、SQLite 以及基于 testcontainers 的 Redis/PostgreSQL。
//
// 容器相关函数会拉起 Docker 容器，调用方应在 testing.Short() 时跳过。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/metrics"
)

// Kit 测试通用依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回默认依赖，Meter 随测试结束关闭
func NewKit(t *testing.T) *Kit {
	meter := NewMeter()
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  meter,
	}
}

// NewLogger 开发格式的 logger，便于本地排查
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("flake"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 使用独立 registry 的 meter，不监听端口
func NewMeter() metrics.Meter {
	meter, err := metrics.New(metrics.NewDevDefaultConfig("test"))
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewContext 带超时的上下文，随测试结束取消
func NewContext(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 8 位随机后缀，用于 key 与表名隔离
func NewID() string {
	return uuid.New().String()[0:8]
}

// SkipIfShort -short 模式下跳过依赖 Docker 的测试
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
}
