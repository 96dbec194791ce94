package idgen

import (
	"github.com/google/uuid"
)

// NewUUIDV7 生成 UUID v7 (时间有序)，适合作为数据库主键
func NewUUIDV7() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return v7.String()
}

// NewUUIDV4 生成 UUID v4 (随机)
func NewUUIDV4() string {
	return uuid.New().String()
}

// UUID UUID 生成器，默认 v7
type UUID struct {
	version string
}

// UUIDOption UUID 初始化选项
type UUIDOption func(*UUID)

// WithUUIDVersion 设置版本: "v4" | "v7"
func WithUUIDVersion(version string) UUIDOption {
	return func(u *UUID) {
		u.version = version
	}
}

// NewUUID 创建 UUID 生成器，未知版本返回 ErrInvalidConfiguration
//
//	gen, _ := idgen.NewUUID(idgen.WithUUIDVersion("v4"))
//	uid := gen.Next()
func NewUUID(opts ...UUIDOption) (*UUID, error) {
	u := &UUID{version: "v7"}
	for _, opt := range opts {
		opt(u)
	}
	if u.version != "v4" && u.version != "v7" {
		return nil, invalidConfig("uuid_version_unsupported", "uuid version %q", u.version)
	}
	return u, nil
}

// Version 返回当前版本
func (u *UUID) Version() string { return u.version }

// Next 生成 UUID 字符串
func (u *UUID) Next() string {
	if u.version == "v4" {
		return NewUUIDV4()
	}
	return NewUUIDV7()
}
