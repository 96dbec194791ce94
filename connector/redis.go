package connector

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/xerrors"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

type redisConnector struct {
	cfg    *RedisConfig
	opts   *redis.Options
	logger clog.Logger
	health *healthState
	dials  *dialRecorder

	mu     sync.Mutex
	client *redis.Client
}

// NewRedis 创建 Redis 连接器，此时不会建立网络连接
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "redis: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, configError("redis", "%v", err)
	}

	ropts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, configError("redis", "parse url: %v", err)
	}

	dials := &dialRecorder{}
	ropts.Dialer = dials.wrap(redis.NewDialer(ropts))

	o := applyOptions(opts)
	return &redisConnector{
		cfg:    cfg,
		opts:   ropts,
		dials:  dials,
		logger: o.logger.With(clog.String("connector", "redis"), clog.String("name", cfg.Name)),
		health: newHealthState(o.meter, "redis", cfg.Name),
	}, nil
}

func buildRedisOptions(cfg *RedisConfig) (*redis.Options, error) {
	var opt *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}
	return opt, nil
}

// Connect 创建客户端并 PING，失败时返回 *ConnectionError
func (c *redisConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	c.logger.Info("connecting to redis", clog.String("addr", c.opts.Addr))

	client := redis.NewClient(c.opts)
	if c.cfg.EnableTracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return xerrors.Wrapf(err, "redis connector[%s]: instrument tracing", c.cfg.Name)
		}
	}
	if c.cfg.EnableMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return xerrors.Wrapf(err, "redis connector[%s]: instrument metrics", c.cfg.Name)
		}
	}

	c.dials.reset()
	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		// 拨号重试可能晚于 PING 超时，超时错误本身不含传输层原因
		if dialErr := c.dials.last(); dialErr != nil && !strings.Contains(err.Error(), dialErr.Error()) {
			err = fmt.Errorf("%w: %w", err, dialErr)
		}
		c.logger.Error("failed to connect to redis", clog.Error(err), clog.String("addr", c.opts.Addr))
		c.health.mark(ctx, false)
		return connectionError("redis", c.cfg.Name, c.opts.Addr, err)
	}

	c.client = client
	c.health.mark(ctx, true)
	c.logger.Info("connected to redis", clog.String("addr", c.opts.Addr))
	return nil
}

func (c *redisConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.health.clear()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil {
		c.logger.Error("failed to close redis connection", clog.Error(err))
		return xerrors.Wrapf(err, "redis connector[%s]: close", c.cfg.Name)
	}
	c.logger.Info("redis connection closed")
	return nil
}

func (c *redisConnector) HealthCheck(ctx context.Context) error {
	client := c.GetClient()
	if client == nil {
		c.health.clear()
		return xerrors.Wrapf(ErrClientNil, "redis connector[%s]", c.cfg.Name)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		c.health.mark(ctx, false)
		c.logger.Warn("redis health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "redis connector[%s]: %v", c.cfg.Name, err)
	}
	c.health.mark(ctx, true)
	return nil
}

func (c *redisConnector) IsHealthy() bool { return c.health.up() }

func (c *redisConnector) Name() string { return c.cfg.Name }

func (c *redisConnector) GetClient() *redis.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// dialRecorder 记录最近一次拨号失败，go-redis 在上下文超时后只返回 context 错误
type dialRecorder struct {
	mu  sync.Mutex
	err error
}

func (d *dialRecorder) wrap(dial func(context.Context, string, string) (net.Conn, error)) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		return conn, err
	}
}

func (d *dialRecorder) last() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *dialRecorder) reset() {
	d.mu.Lock()
	d.err = nil
	d.mu.Unlock()
}
