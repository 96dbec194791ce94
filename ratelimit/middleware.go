package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// KeyFunc 从请求中提取限流键，返回空串表示不限流
type KeyFunc func(*gin.Context) string

// LimitFunc 返回请求适用的限流规则
type LimitFunc func(*gin.Context) Limit

// MiddlewareOption 中间件选项
type MiddlewareOption func(*middleware)

type middleware struct {
	cost    func(*gin.Context) int
	headers bool
}

// WithCost 按请求计算消耗的令牌数，例如批量接口按数量计费。
// 超过 Burst 的消耗按 Burst 计算，否则请求永远无法通过。
func WithCost(fn func(*gin.Context) int) MiddlewareOption {
	return func(m *middleware) {
		m.cost = fn
	}
}

// WithHeaders 在响应中写入 X-RateLimit-* 头
func WithHeaders() MiddlewareOption {
	return func(m *middleware) {
		m.headers = true
	}
}

// GinMiddleware 创建 Gin 限流中间件
//
// keyFunc 为 nil 时使用客户端 IP。限流器出错时放行。
//
//	r.Use(ratelimit.GinMiddleware(limiter, nil,
//	    func(c *gin.Context) ratelimit.Limit {
//	        return ratelimit.Limit{Rate: 100, Burst: 200}
//	    },
//	    ratelimit.WithHeaders(),
//	))
func GinMiddleware(limiter Limiter, keyFunc KeyFunc, limitFunc LimitFunc, opts ...MiddlewareOption) gin.HandlerFunc {
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string {
			return c.ClientIP()
		}
	}
	m := &middleware{}
	for _, opt := range opts {
		opt(m)
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		limit := limitFunc(c)
		if !limit.valid() {
			c.Next()
			return
		}

		cost := 1
		if m.cost != nil {
			cost = min(max(m.cost(c), 1), limit.Burst)
		}

		if m.headers {
			c.Header("X-RateLimit-Limit", formatLimit(limit))
		}

		allowed, err := limiter.AllowN(c.Request.Context(), key, limit, cost)
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			if m.headers {
				c.Header("X-RateLimit-Remaining", "0")
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// GinMiddlewarePerPath 按路径选择规则，键为 IP 与路径的组合
func GinMiddlewarePerPath(limiter Limiter, pathLimits map[string]Limit, defaultLimit Limit, opts ...MiddlewareOption) gin.HandlerFunc {
	return GinMiddleware(
		limiter,
		func(c *gin.Context) string {
			return c.ClientIP() + ":" + c.FullPath()
		},
		func(c *gin.Context) Limit {
			if limit, ok := pathLimits[c.FullPath()]; ok {
				return limit
			}
			return defaultLimit
		},
		opts...,
	)
}

func formatLimit(limit Limit) string {
	return fmt.Sprintf("rate=%.2f, burst=%d", limit.Rate, limit.Burst)
}
