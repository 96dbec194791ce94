package testkit

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/ceyewan/flake/connector"
)

// NewPostgreSQLContainerConfig 启动 PostgreSQL 容器并返回配置
func NewPostgreSQLContainerConfig(t *testing.T) *connector.PostgreSQLConfig {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("flake"),
		postgres.WithUsername("flake"),
		postgres.WithPassword("flake"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	return &connector.PostgreSQLConfig{
		Name:     "testcontainer-postgres",
		Host:     host,
		Port:     port,
		Username: "flake",
		Password: "flake",
		Database: "flake",
		Pool:     connector.PoolConfig{MaxIdleConns: 2, MaxOpenConns: 10},
	}
}

// NewPostgreSQLConnector 已连接的 PostgreSQL 连接器
func NewPostgreSQLConnector(t *testing.T) connector.GormConnector {
	conn, err := connector.NewPostgreSQL(NewPostgreSQLContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create postgres connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to postgres")

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// NewPostgreSQLDB GORM 实例
func NewPostgreSQLDB(t *testing.T) *gorm.DB {
	return NewPostgreSQLConnector(t).GetClient()
}
