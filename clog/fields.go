package clog

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// Field 即 slog.Attr，构造字段不产生额外分配。
type Field = slog.Attr

// 常用字段构造器直接复用 slog
var (
	String   = slog.String
	Int      = slog.Int
	Int64    = slog.Int64
	Uint64   = slog.Uint64
	Float64  = slog.Float64
	Bool     = slog.Bool
	Time     = slog.Time
	Duration = slog.Duration
	Any      = slog.Any
)

// Error 输出 err_msg="..."，err 为 nil 时返回空字段，handler 会忽略。
func Error(err error) Field {
	if err == nil {
		return Field{}
	}
	return slog.String("err_msg", err.Error())
}

// ErrorWithCode 输出 error={msg, code}，err 为 nil 时只有 code
func ErrorWithCode(err error, code string) Field {
	attrs := make([]any, 0, 2)
	if err != nil {
		attrs = append(attrs, slog.String("msg", err.Error()))
	}
	return slog.Group("error", append(attrs, slog.String("code", code))...)
}

// ErrorWithStack 输出 error={msg, type, stack}，开销较大，只用于排障。
func ErrorWithStack(err error) Field {
	if err == nil {
		return Field{}
	}
	attrs := []any{
		slog.String("msg", err.Error()),
		slog.String("type", fmt.Sprintf("%T", err)),
	}
	if stack := callerStack(3); stack != "" {
		attrs = append(attrs, slog.String("stack", stack))
	}
	return slog.Group("error", attrs...)
}

func callerStack(skip int) string {
	pcs := make([]uintptr, 32)
	pcs = pcs[:runtime.Callers(skip, pcs)]
	if len(pcs) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(pcs)
	for frame, more := frames.Next(); ; frame, more = frames.Next() {
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}
