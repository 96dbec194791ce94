// Package db 在 GORM 连接器之上提供数据库组件：事务、SQL 日志、链路追踪与分表。
//
// db 借用连接器的连接，不负责其生命周期：
//
//	conn, _ := connector.NewPostgreSQL(&cfg.Postgres, connector.WithLogger(logger))
//	_ = conn.Connect(ctx)
//	defer conn.Close()
//
//	gen, _ := idgen.New(idgen.DefaultConfig(1, 1))
//	database, _ := db.New(conn, &db.Config{
//		EnableTracing:  true,
//		EnableSharding: true,
//		ShardingRules: []db.ShardingRule{
//			{ShardingKey: "user_id", NumberOfShards: 64, Tables: []string{"orders"}},
//		},
//	}, db.WithLogger(logger), db.WithIDGenerator(gen))
//
//	err := database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
//		return tx.Create(&Order{UserID: 42}).Error
//	})
//
// 分表的主键由注入的 Snowflake 生成器产生，未注入时退回 gorm/sharding 内置的雪花算法。
package db

import (
	"context"
	"reflect"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/sharding"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/connector"
	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/xerrors"
)

// DB 数据库组件
type DB interface {
	// DB 返回绑定 ctx 的 *gorm.DB
	DB(ctx context.Context) *gorm.DB

	// Transaction 执行事务，fn 返回错误时回滚。tx 仅在 fn 内有效。
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// Close 连接由连接器管理，这里只释放组件自身持有的资源
	Close() error
}

// IDGenerator 分表主键来源，*idgen.Snowflake 满足该接口
type IDGenerator interface {
	NextIDContext(ctx context.Context) (idgen.ID, error)
}

type database struct {
	client *gorm.DB
	logger clog.Logger
}

// New 创建数据库组件
func New(conn connector.GormConnector, cfg *Config, opts ...Option) (DB, error) {
	if conn == nil {
		return nil, ErrConnectorRequired
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid db config")
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrapf(connector.ErrNotConnected, "db: connector %s", conn.Name())
	}

	o := applyOptions(opts)
	gormDB := client.Session(&gorm.Session{
		Logger: newGormLogger(o.logger, o.meter, conn.Dialect(), cfg.SlowThreshold, o.silent),
	})

	if cfg.EnableTracing {
		plugin := otelgorm.NewPlugin(
			otelgorm.WithDBName(conn.Name()),
			otelgorm.WithTracerProvider(o.tracer),
			otelgorm.WithoutMetrics(),
		)
		if err := gormDB.Use(plugin); err != nil {
			return nil, xerrors.Wrap(err, "db: register otelgorm plugin")
		}
	}

	if cfg.EnableSharding {
		sharded := make(map[string]struct{})
		for _, rule := range cfg.ShardingRules {
			tables := make([]any, len(rule.Tables))
			for i, v := range rule.Tables {
				tables[i] = v
				sharded[v] = struct{}{}
			}
			middleware := sharding.Register(shardingConfig(rule, o.idgen, o.logger), tables...)
			if err := gormDB.Use(middleware); err != nil {
				return nil, xerrors.Wrapf(err, "db: register sharding for tables %v", rule.Tables)
			}
		}
		if o.idgen != nil {
			err := gormDB.Callback().Create().Before("gorm:create").
				Register("flake:sharding_primary_key", assignPrimaryKeys(o.idgen, sharded))
			if err != nil {
				return nil, xerrors.Wrap(err, "db: register primary key callback")
			}
		}
	}

	o.logger.Info("db component created",
		clog.String("connector", conn.Name()),
		clog.String("dialect", conn.Dialect()),
		clog.Bool("tracing", cfg.EnableTracing),
		clog.Int("sharding_rules", len(cfg.ShardingRules)),
	)

	return &database{client: gormDB, logger: o.logger}, nil
}

// shardingConfig 主键由 gen 生成；gen 为 nil 时使用 sharding 自带的雪花算法。
// 模型写入的主键已由 assignPrimaryKeys 填好，这里只兜底原生 INSERT：
// 生成失败时返回 0，sharding 不会补 id 列，交由数据库约束拒绝写入。
func shardingConfig(rule ShardingRule, gen IDGenerator, logger clog.Logger) sharding.Config {
	cfg := sharding.Config{
		ShardingKey:         rule.ShardingKey,
		NumberOfShards:      rule.NumberOfShards,
		PrimaryKeyGenerator: sharding.PKSnowflake,
	}
	if gen != nil {
		cfg.PrimaryKeyGenerator = sharding.PKCustom
		cfg.PrimaryKeyGeneratorFn = func(int64) int64 {
			id, err := gen.NextIDContext(context.Background())
			if err != nil {
				logger.Error("sharding primary key not generated", clog.Error(err))
				return 0
			}
			return id.Int64()
		}
	}
	return cfg
}

// assignPrimaryKeys 在 gorm:create 之前为分表模型填充零值主键，生成失败时中止本次写入
func assignPrimaryKeys(gen IDGenerator, tables map[string]struct{}) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		stmt := tx.Statement
		if tx.Error != nil || stmt.Schema == nil || stmt.Schema.PrioritizedPrimaryField == nil {
			return
		}
		if _, ok := tables[stmt.Table]; !ok {
			return
		}

		field := stmt.Schema.PrioritizedPrimaryField
		rv := stmt.ReflectValue
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := range rv.Len() {
				if err := assignPrimaryKey(stmt.Context, gen, field, reflect.Indirect(rv.Index(i))); err != nil {
					_ = tx.AddError(xerrors.Wrapf(err, "db: primary key for %s", stmt.Table))
					return
				}
			}
		case reflect.Struct:
			if err := assignPrimaryKey(stmt.Context, gen, field, rv); err != nil {
				_ = tx.AddError(xerrors.Wrapf(err, "db: primary key for %s", stmt.Table))
			}
		}
	}
}

func assignPrimaryKey(ctx context.Context, gen IDGenerator, field *schema.Field, rv reflect.Value) error {
	if _, zero := field.ValueOf(ctx, rv); !zero {
		return nil
	}
	id, err := gen.NextIDContext(ctx)
	if err != nil {
		return err
	}
	return field.Set(ctx, rv, id.Int64())
}

func (d *database) DB(ctx context.Context) *gorm.DB {
	return d.client.WithContext(ctx)
}

func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

func (d *database) Close() error {
	return nil
}
