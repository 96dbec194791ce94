package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/metrics"
)

// MetricQueryDuration SQL 执行耗时 (秒)
const MetricQueryDuration = "db_query_duration_seconds"

// gormLogger 将 GORM 日志适配到 clog，并记录 SQL 耗时
type gormLogger struct {
	logger   clog.Logger
	level    logger.LogLevel
	slow     time.Duration
	duration metrics.Histogram
	dialect  string
}

func newGormLogger(log clog.Logger, meter metrics.Meter, dialect string, slow time.Duration, silent bool) logger.Interface {
	level := logger.Info
	if silent {
		level = logger.Silent
	}
	hist, err := meter.Histogram(MetricQueryDuration, "SQL execution time",
		metrics.WithUnit("s"),
		metrics.WithBuckets([]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}),
	)
	if err != nil {
		log.Warn("create db histogram failed", clog.Error(err))
		hist, _ = metrics.Discard().Histogram("", "")
	}
	return &gormLogger{
		logger:   log,
		level:    level,
		slow:     slow,
		duration: hist,
		dialect:  dialect,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.level = level
	return &newLogger
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace 记录 SQL 执行日志。记录不存在不视为错误。
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	status := "ok"
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		status = "error"
	}
	l.duration.Record(ctx, elapsed.Seconds(), metrics.L("dialect", l.dialect), metrics.L("status", status))

	if l.level <= logger.Silent {
		return
	}

	sql, rows := fc()
	fields := []clog.Field{
		clog.Duration("duration", elapsed),
		clog.String("sql", sql),
		clog.Int64("rows", rows),
	}

	switch {
	case status == "error" && l.level >= logger.Error:
		l.logger.ErrorContext(ctx, "sql error", append(fields, clog.Error(err))...)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		l.logger.WarnContext(ctx, "slow sql", fields...)
	case l.level >= logger.Info:
		l.logger.DebugContext(ctx, "sql", fields...)
	}
}
