package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/connector"
	"github.com/ceyewan/flake/xerrors"
)

// tokenBucketScript 令牌桶，桶状态为下一次可放行的时间戳
const tokenBucketScript = `
-- KEYS[1] 桶键
-- ARGV: rate, burst, now(秒), cost
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local step = 1 / rate
local horizon = now + burst * step

local tat = tonumber(redis.call("GET", KEYS[1]))
if tat == nil or tat < now then
  tat = now
end

local next_tat = tat + cost * step
if next_tat > horizon then
  return {0, math.floor((horizon - tat) / step)}
end

redis.call("SET", KEYS[1], next_tat, "EX", math.ceil(burst * step * 2))
return {1, math.floor((horizon - next_tat) / step)}
`

type distributedLimiter struct {
	client  *redis.Client
	prefix  string
	logger  clog.Logger
	script  *redis.Script
	metrics *limiterMetrics
	now     func() time.Time
}

func newDistributed(cfg *DistributedConfig, redisConn connector.RedisConnector, o *options) (*distributedLimiter, error) {
	return &distributedLimiter{
		client:  redisConn.GetClient(),
		prefix:  cfg.Prefix,
		logger:  o.logger,
		script:  redis.NewScript(tokenBucketScript),
		metrics: newLimiterMetrics(o.meter, "distributed"),
		now:     time.Now,
	}, nil
}

func (l *distributedLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *distributedLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if err := checkArgs(key, limit, n); err != nil {
		return false, err
	}

	now := float64(l.now().UnixNano()) / 1e9
	result, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, limit.Rate, limit.Burst, now, n).Int64Slice()
	if err != nil {
		l.metrics.observe(ctx, false, err)
		l.logger.ErrorContext(ctx, "failed to execute rate limit script",
			clog.String("key", key),
			clog.Error(err))
		return false, xerrors.Wrap(err, "ratelimit: execute lua script")
	}
	if len(result) != 2 {
		return false, fmt.Errorf("ratelimit: unexpected script result %v", result)
	}

	allowed := result[0] == 1
	l.metrics.observe(ctx, allowed, nil)
	l.logger.DebugContext(ctx, "rate limit check",
		clog.String("key", key),
		clog.Bool("allowed", allowed),
		clog.Int64("remaining", result[1]),
		clog.Int("requested", n))
	return allowed, nil
}

// Close 连接由 Connector 管理
func (l *distributedLimiter) Close() error {
	return nil
}
