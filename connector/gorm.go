package connector

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/xerrors"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormConnector 三种关系库共用的连接逻辑，差异只在 Dialector 与目标描述
type gormConnector struct {
	name    string
	dialect string
	target  string // 日志与错误信息中的目标，不含密码
	open    func() gorm.Dialector
	pool    PoolConfig
	timeout func(context.Context) (context.Context, context.CancelFunc)

	logger clog.Logger
	health *healthState

	mu sync.RWMutex
	db *gorm.DB
}

func newGormConnector(dialect, name, target string, pool PoolConfig, open func() gorm.Dialector, o *options) *gormConnector {
	return &gormConnector{
		name:    name,
		dialect: dialect,
		target:  target,
		open:    open,
		pool:    pool,
		timeout: func(ctx context.Context) (context.Context, context.CancelFunc) { return ctx, func() {} },
		logger:  o.logger.With(clog.String("connector", dialect), clog.String("name", name)),
		health:  newHealthState(o.meter, dialect, name),
	}
}

// NewPostgreSQL 创建 PostgreSQL 连接器
func NewPostgreSQL(cfg *PostgreSQLConfig, opts ...Option) (GormConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "postgres: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, configError("postgres", "%v", err)
	}
	dsn := cfg.dsn()
	c := newGormConnector("postgres", cfg.Name, cfg.Host, cfg.Pool,
		func() gorm.Dialector { return postgres.Open(dsn) }, applyOptions(opts))
	c.timeout = withTimeout(cfg.ConnectTimeout)
	return c, nil
}

// NewMySQL 创建 MySQL 连接器
func NewMySQL(cfg *MySQLConfig, opts ...Option) (GormConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "mysql: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, configError("mysql", "%v", err)
	}
	dsn := cfg.dsn()
	c := newGormConnector("mysql", cfg.Name, cfg.Host, cfg.Pool,
		func() gorm.Dialector { return mysql.Open(dsn) }, applyOptions(opts))
	c.timeout = withTimeout(cfg.ConnectTimeout)
	return c, nil
}

// NewSQLite 创建 SQLite 连接器，主要用于本地开发与测试
func NewSQLite(cfg *SQLiteConfig, opts ...Option) (GormConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "sqlite: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, configError("sqlite", "%v", err)
	}
	path := cfg.Path
	return newGormConnector("sqlite", cfg.Name, path, cfg.Pool,
		func() gorm.Dialector { return sqlite.Open(path) }, applyOptions(opts)), nil
}

func withTimeout(d time.Duration) func(context.Context) (context.Context, context.CancelFunc) {
	return func(ctx context.Context) (context.Context, context.CancelFunc) {
		if d <= 0 {
			return ctx, func() {}
		}
		return context.WithTimeout(ctx, d)
	}
}

func (c *gormConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	c.logger.Info("connecting", clog.String("target", c.target))

	// 连接器自身只做建连，SQL 日志由 db 组件接管
	db, err := gorm.Open(c.open(), &gorm.Config{Logger: logger.Discard, DisableAutomaticPing: true})
	if err != nil {
		c.logger.Error("failed to open connection", clog.Error(err))
		c.health.mark(ctx, false)
		return connectionError(c.dialect, c.name, c.target, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return connectionError(c.dialect, c.name, c.target, err)
	}
	sqlDB.SetMaxIdleConns(c.pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.pool.ConnMaxLifetime)

	pingCtx, cancel := c.timeout(ctx)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		c.logger.Error("failed to connect", clog.Error(err), clog.String("target", c.target))
		c.health.mark(ctx, false)
		return connectionError(c.dialect, c.name, c.target, err)
	}

	c.db = db
	c.health.mark(ctx, true)
	c.logger.Info("connected", clog.String("target", c.target))
	return nil
}

func (c *gormConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.health.clear()
	if c.db == nil {
		return nil
	}

	sqlDB, err := c.db.DB()
	c.db = nil
	if err != nil {
		return xerrors.Wrapf(err, "%s connector[%s]: close", c.dialect, c.name)
	}
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("failed to close connection", clog.Error(err))
		return xerrors.Wrapf(err, "%s connector[%s]: close", c.dialect, c.name)
	}
	c.logger.Info("connection closed")
	return nil
}

func (c *gormConnector) HealthCheck(ctx context.Context) error {
	db := c.GetClient()
	if db == nil {
		c.health.clear()
		return xerrors.Wrapf(ErrClientNil, "%s connector[%s]", c.dialect, c.name)
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.health.mark(ctx, false)
		c.logger.Warn("health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "%s connector[%s]: %v", c.dialect, c.name, err)
	}

	c.health.mark(ctx, true)
	return nil
}

func (c *gormConnector) IsHealthy() bool { return c.health.up() }

func (c *gormConnector) Name() string { return c.name }

func (c *gormConnector) Dialect() string { return c.dialect }

func (c *gormConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
