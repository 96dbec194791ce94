package clog

import "context"

// Logger 结构化日志接口。
//
// 每个级别都有带 Context 的版本，用于提取 Context 字段和 TraceID。
//
//	child := logger.With(clog.String("component", "idgen"))
//	ns := logger.WithNamespace("server", "http") // namespace=server.http
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 返回带预设字段的子 Logger。
	With(fields ...Field) Logger
	// WithNamespace 返回追加命名空间的子 Logger。
	WithNamespace(parts ...string) Logger
	// SetLevel 运行时调整级别，对同一来源派生的所有 Logger 生效。
	SetLevel(level Level) error
	// Flush 将文件输出落盘。
	Flush()
}
