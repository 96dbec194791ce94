// Package xerrors 是 flake 各组件共用的错误工具：上下文前缀、错误码、多错误合并和通用哨兵。
//
// 组件在自己的 errors.go 里声明哨兵错误并包装这里的通用哨兵，
// 调用方只需 errors.Is(err, xerrors.ErrInvalidInput) 即可按类别处理。
package xerrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
)

// 标准库再导出，调用方无需同时导入 errors
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Wrap 返回 "msg: err"，保留 err 供 Is/As 匹配；err 为 nil 时返回 nil。
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 同 Wrap，前缀按 format 生成
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// CodedError 携带稳定的机器可读错误码，HTTP 层据此填充响应体
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return "[" + e.Code + "]"
	}
	return "[" + e.Code + "] " + e.Cause.Error()
}

func (e *CodedError) Unwrap() error { return e.Cause }

// WithCode 给 err 附加错误码，err 为 nil 时返回 nil。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// GetCode 沿错误链查找第一个错误码，找不到返回空串
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 启动阶段使用，err 非 nil 直接 panic
func Must[T any](v T, err error) T {
	if err != nil {
		panic("must: " + err.Error())
	}
	return v
}

// MultiError 聚合多个错误，Unwrap() []error 让 Is/As 能逐个匹配
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	var b strings.Builder
	b.WriteString(m.Errors[0].Error())
	if rest := len(m.Errors) - 1; rest > 0 {
		fmt.Fprintf(&b, " (and %d more errors)", rest)
	}
	return b.String()
}

func (m *MultiError) Unwrap() []error { return m.Errors }

// Combine 丢弃 nil 后合并，只剩一个错误时原样返回
func Combine(errs ...error) error {
	kept := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &MultiError{Errors: kept}
}
