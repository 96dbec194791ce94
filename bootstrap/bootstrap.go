// Package bootstrap 按配置装配 flake 进程：日志、链路追踪、指标、ID 生成器、
// 可选的数据库与 Redis 连接、限流器和 HTTP 服务。
//
//	cfg, _ := bootstrap.Load(ctx, "config.yaml")
//	app, err := bootstrap.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer app.Close(context.Background())
//	return app.Run(ctx)
package bootstrap

import (
	"context"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/connector"
	"github.com/ceyewan/flake/db"
	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/metrics"
	"github.com/ceyewan/flake/ratelimit"
	"github.com/ceyewan/flake/server"
	"github.com/ceyewan/flake/trace"
	"github.com/ceyewan/flake/xerrors"
)

// Shutdown 释放一项资源
type Shutdown func(context.Context) error

type closer struct {
	name string
	fn   Shutdown
}

// App 装配完成的进程，字段在对应功能未启用时为 nil
type App struct {
	Config *Config
	Logger clog.Logger
	Meter  metrics.Meter

	IDGen *idgen.Snowflake
	UUID  *idgen.UUID

	SQL     connector.GormConnector
	DB      db.DB
	Redis   connector.RedisConnector
	Limiter ratelimit.Limiter
	Server  *server.Server

	closers []closer
}

// Option 装配选项
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 使用给定的 Logger，不再调用 clog.Setup
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New 按依赖顺序初始化各组件，任何一步失败都会释放已创建的资源。
// 连接失败的错误满足 errors.Is(err, connector.ErrConnection)。
func New(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "bootstrap: config is nil")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	app := &App{Config: &c}
	if err := app.init(ctx, o); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	app.Logger.Info("flake started",
		clog.String("name", c.App.Name),
		clog.Int64("worker_id", app.IDGen.WorkerID()),
		clog.Int64("datacenter_id", app.IDGen.DatacenterID()),
		clog.Int64("epoch", app.IDGen.Epoch()))
	return app, nil
}

func (a *App) init(ctx context.Context, o *options) error {
	c := a.Config

	// 日志
	logger := o.logger
	if logger == nil {
		l, err := clog.Setup(c.Log.Debug, c.Log.Dir, c.Log.Prefix, clog.WithTraceContext())
		if err != nil {
			return xerrors.Wrap(err, "bootstrap: init logger")
		}
		logger = l
	}
	a.Logger = logger
	a.onClose("logger", func(context.Context) error { logger.Flush(); return nil })

	// 链路追踪
	traceShutdown, err := trace.Init(&c.Trace)
	if err != nil {
		return xerrors.Wrap(err, "bootstrap: init trace")
	}
	a.onClose("trace", traceShutdown)

	// 指标
	meter, err := metrics.New(&c.Metrics, metrics.WithLogger(logger))
	if err != nil {
		return xerrors.Wrap(err, "bootstrap: init metrics")
	}
	a.Meter = meter
	a.onClose("metrics", meter.Shutdown)

	// ID 生成器
	gen, err := idgen.New(&c.IDGen, idgen.WithLogger(logger), idgen.WithMeter(meter))
	if err != nil {
		return xerrors.Wrap(err, "bootstrap: init id generator")
	}
	a.IDGen = gen

	var uuidOpts []idgen.UUIDOption
	if c.App.UUIDVersion != "" {
		uuidOpts = append(uuidOpts, idgen.WithUUIDVersion(c.App.UUIDVersion))
	}
	if a.UUID, err = idgen.NewUUID(uuidOpts...); err != nil {
		return xerrors.Wrap(err, "bootstrap: init uuid generator")
	}

	connOpts := []connector.Option{connector.WithLogger(logger), connector.WithMeter(meter)}

	// 关系型数据库
	if err := a.initSQL(ctx, connOpts); err != nil {
		return err
	}

	// Redis
	if c.Redis != nil {
		rc, err := connector.NewRedis(c.Redis, connOpts...)
		if err != nil {
			return xerrors.Wrap(err, "bootstrap: redis")
		}
		if err := connect(ctx, rc); err != nil {
			return err
		}
		a.Redis = rc
		a.onClose("redis", func(context.Context) error { return rc.Close() })
	}

	// 限流器
	if err := a.initLimiter(); err != nil {
		return err
	}

	// HTTP 服务
	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithMeter(meter),
		server.WithUUID(a.UUID),
		server.WithLimiter(a.Limiter),
	}
	if a.SQL != nil {
		serverOpts = append(serverOpts, server.WithHealthChecks(a.SQL))
	}
	if a.Redis != nil {
		serverOpts = append(serverOpts, server.WithHealthChecks(a.Redis))
	}
	if a.Server, err = server.New(gen, &c.Server, serverOpts...); err != nil {
		return xerrors.Wrap(err, "bootstrap: init server")
	}
	return nil
}

func (a *App) initSQL(ctx context.Context, connOpts []connector.Option) error {
	c := a.Config

	var (
		conn connector.GormConnector
		err  error
	)
	switch {
	case c.Postgres != nil:
		conn, err = connector.NewPostgreSQL(c.Postgres, connOpts...)
	case c.MySQL != nil:
		conn, err = connector.NewMySQL(c.MySQL, connOpts...)
	case c.SQLite != nil:
		conn, err = connector.NewSQLite(c.SQLite, connOpts...)
	default:
		return nil
	}
	if err != nil {
		return xerrors.Wrap(err, "bootstrap: database")
	}
	if err := connect(ctx, conn); err != nil {
		return err
	}
	a.SQL = conn
	a.onClose(conn.Dialect(), func(context.Context) error { return conn.Close() })

	database, err := db.New(conn, &c.DB,
		db.WithLogger(a.Logger),
		db.WithMeter(a.Meter),
		db.WithIDGenerator(a.IDGen),
	)
	if err != nil {
		return xerrors.Wrap(err, "bootstrap: init db")
	}
	a.DB = database
	a.onClose("db", func(context.Context) error { return database.Close() })
	return nil
}

func (a *App) initLimiter() error {
	c := a.Config
	if c.Server.BatchLimit.Rate <= 0 {
		return nil
	}

	limiterOpts := []ratelimit.Option{ratelimit.WithLogger(a.Logger), ratelimit.WithMeter(a.Meter)}
	var (
		limiter ratelimit.Limiter
		err     error
	)
	if c.RateLimit.Mode == RateLimitDistributed {
		limiter, err = ratelimit.NewDistributed(a.Redis, &c.RateLimit.Distributed, limiterOpts...)
	} else {
		limiter, err = ratelimit.NewStandalone(&c.RateLimit.Standalone, limiterOpts...)
	}
	if err != nil {
		return xerrors.Wrap(err, "bootstrap: init rate limiter")
	}
	a.Limiter = limiter
	a.onClose("ratelimit", func(context.Context) error { return limiter.Close() })
	return nil
}

// connect 连接失败时保留 connector.ErrConnection 以及底层传输错误的信息
func connect(ctx context.Context, conn connector.Connector) error {
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return xerrors.Wrapf(err, "bootstrap: connect %s", conn.Name())
	}
	return nil
}

func (a *App) onClose(name string, fn Shutdown) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run 启动 HTTP 服务直到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	return a.Server.Run(ctx)
}

// Close 按创建的逆序释放资源，可重复调用
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, xerrors.Wrapf(err, "close %s", c.name))
		}
	}
	a.closers = nil
	return xerrors.Combine(errs...)
}
