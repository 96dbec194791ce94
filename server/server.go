// Package server 以 HTTP 暴露 ID 生成服务。
//
// 路由：
//
//	GET /v1/ids/next        生成一个 ID
//	GET /v1/ids?count=N     批量生成，按 N 计入限流
//	GET /v1/ids/:id         解码十进制或 Base62 形式的 ID
//	GET /v1/uuid            生成 UUID
//	GET /healthz            检查已注册的连接器
//	GET /metrics            Prometheus 抓取接口
//
// 时钟回拨等暂时性错误返回 503 并附带 Retry-After，参数错误返回 400。
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/metrics"
	"github.com/ceyewan/flake/ratelimit"
	"github.com/ceyewan/flake/trace"
	"github.com/ceyewan/flake/xerrors"
)

// Generator 服务依赖的生成器能力，*idgen.Snowflake 满足该接口
type Generator interface {
	NextIDContext(ctx context.Context) (idgen.ID, error)
	NextBatch(n int) ([]idgen.ID, error)
	Decode(id idgen.ID) idgen.Decoded
	WorkerID() int64
	DatacenterID() int64
}

// Server ID 服务的 HTTP 入口
type Server struct {
	cfg    Config
	gen    Generator
	opts   *options
	logger clog.Logger
	engine *gin.Engine
}

// New 创建服务并注册路由，cfg 为 nil 时使用默认配置
func New(gen Generator, cfg *Config, opts ...Option) (*Server, error) {
	if gen == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "server: generator is required")
	}

	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	if o.uuid == nil {
		o.uuid, _ = idgen.NewUUID()
	}

	s := &Server{cfg: c, gen: gen, opts: o, logger: o.logger}
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	httpMetrics, err := metrics.NewHTTPServerMetrics(s.opts.meter, metrics.DefaultHTTPServerMetricsConfig(s.cfg.ServiceName))
	if err != nil {
		return xerrors.Wrap(err, "server: http metrics")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(trace.GinMiddleware(s.cfg.ServiceName))
	r.Use(metrics.GinHTTPMiddleware(httpMetrics))

	v1 := r.Group("/v1")
	v1.GET("/ids/next", s.handleNext)
	v1.GET("/ids", s.batchLimit(), s.handleBatch)
	v1.GET("/ids/:id", s.handleDecode)
	v1.GET("/uuid", s.handleUUID)

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", metrics.GinHandler(s.opts.meter))

	s.engine = r
	return nil
}

// batchLimit 未配置限流时为空操作
func (s *Server) batchLimit() gin.HandlerFunc {
	if s.opts.limiter == nil || s.cfg.BatchLimit.Rate <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limit := s.cfg.BatchLimit
	return ratelimit.GinMiddleware(s.opts.limiter, nil,
		func(*gin.Context) ratelimit.Limit { return limit },
		ratelimit.WithCost(func(c *gin.Context) int {
			n, err := parseCount(c.Query("count"), s.cfg.MaxBatch)
			if err != nil {
				return 1
			}
			return n
		}),
		ratelimit.WithHeaders(),
	)
}

// Handler 返回路由，便于测试或嵌入其他 http.Server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 Config.Addr 直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "server: listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定的 Listener 上服务直到 ctx 结束
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", clog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return xerrors.Wrap(err, "server: serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return xerrors.Wrap(err, "server: shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return xerrors.Wrap(err, "server: serve")
	}
	return nil
}
