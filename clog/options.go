package clog

import "bytes"

// ContextField 描述从 Context 中提取字段的规则。
type ContextField struct {
	Key       any
	FieldName string
}

// Option 配置 Logger 实例。
type Option func(*options)

type options struct {
	namespaceParts []string
	contextFields  []ContextField
	traceContext   bool
	buffer         *bytes.Buffer // 仅测试使用
}

// WithNamespace 追加命名空间，多段以 "." 连接后写入 namespace 字段。
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithContextField 从 ctx.Value(key) 提取字段，写入 fieldName。
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{Key: key, FieldName: fieldName})
	}
}

// WithStandardContext 提取 request_id 与 user_id。
func WithStandardContext() Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields,
			ContextField{Key: "request_id", FieldName: "request_id"},
			ContextField{Key: "user_id", FieldName: "user_id"},
		)
	}
}

// WithTraceContext 从 Context 中提取 OpenTelemetry 的 trace_id 与 span_id。
func WithTraceContext() Option {
	return func(o *options) {
		o.traceContext = true
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// clone 深拷贝切片，避免派生 Logger 之间互相影响。
func (o *options) clone() *options {
	c := *o
	c.namespaceParts = append([]string(nil), o.namespaceParts...)
	c.contextFields = append([]ContextField(nil), o.contextFields...)
	return &c
}
