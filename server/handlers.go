package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/flake/clog"
	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/trace"
	"github.com/ceyewan/flake/xerrors"
)

// ErrBadCount count 参数不合法
var ErrBadCount = xerrors.Wrap(xerrors.ErrInvalidInput, "server: count")

// decodeResponse ID 的解码结果，Time 序列化为 RFC3339
type decodeResponse struct {
	idgen.Decoded
	Base62 string `json:"base62"`
}

func (s *Server) startSpan(c *gin.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	attrs = append(attrs,
		attribute.Int64(trace.AttrIDGenWorkerID, s.gen.WorkerID()),
		attribute.Int64(trace.AttrIDGenDatacenterID, s.gen.DatacenterID()),
	)
	return trace.StartSpan(c.Request.Context(), s.opts.tracer, name, attrs...)
}

func (s *Server) handleNext(c *gin.Context) {
	ctx, span := s.startSpan(c, trace.SpanNameIDGenNext)
	defer span.End()

	id, err := s.gen.NextIDContext(ctx)
	if err != nil {
		s.fail(ctx, c, span, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) handleBatch(c *gin.Context) {
	n, err := parseCount(c.Query("count"), s.cfg.MaxBatch)
	if err != nil {
		s.fail(c.Request.Context(), c, nil, err)
		return
	}

	ctx, span := s.startSpan(c, trace.SpanNameIDGenBatch, attribute.Int(trace.AttrIDGenCount, n))
	defer span.End()

	ids, err := s.gen.NextBatch(n)
	if err != nil {
		s.fail(ctx, c, span, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids, "count": len(ids)})
}

func (s *Server) handleDecode(c *gin.Context) {
	ctx, span := s.startSpan(c, trace.SpanNameIDGenDecode)
	defer span.End()

	id, err := parseID(c.Param("id"), c.Query("format"))
	if err != nil {
		s.fail(ctx, c, span, err)
		return
	}
	c.JSON(http.StatusOK, decodeResponse{Decoded: s.gen.Decode(id), Base62: id.Base62()})
}

func (s *Server) handleUUID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"uuid": s.opts.uuid.Next(), "version": s.opts.uuid.Version()})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.opts.checks))
	for _, conn := range s.opts.checks {
		if err := conn.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[conn.Name()] = err.Error()
			s.logger.WarnContext(ctx, "health check failed", clog.String("connector", conn.Name()), clog.Error(err))
			continue
		}
		checks[conn.Name()] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":        state,
		"worker_id":     s.gen.WorkerID(),
		"datacenter_id": s.gen.DatacenterID(),
		"checks":        checks,
	})
}

// fail 写错误响应。参数错误 400，时钟等暂时性错误 503，其余 500。
func (s *Server) fail(ctx context.Context, c *gin.Context, span oteltrace.Span, err error) {
	trace.MarkSpanError(span, err)

	status := statusOf(err)
	body := gin.H{"error": err.Error()}
	if code := xerrors.GetCode(err); code != "" {
		body["code"] = code
	}

	switch status {
	case http.StatusServiceUnavailable:
		c.Header("Retry-After", strconv.Itoa(retryAfter(err)))
		s.logger.WarnContext(ctx, "id generation unavailable", clog.Error(err))
	case http.StatusInternalServerError:
		s.logger.ErrorContext(ctx, "request failed", clog.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// retryAfter 按回拨幅度取整到秒，至少 1 秒
func retryAfter(err error) int {
	var ce *idgen.ClockError
	if errors.As(err, &ce) {
		return max(1, int(math.Ceil(ce.Drift.Seconds())))
	}
	return 1
}

// parseCount 空值按 1 处理
func parseCount(raw string, limit int) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, xerrors.WithCode(xerrors.Wrapf(ErrBadCount, "%q is not a number", raw), "count_invalid")
	}
	if n < 1 || n > limit {
		return 0, xerrors.WithCode(xerrors.Wrapf(ErrBadCount, "%d not in [1, %d]", n, limit), "count_out_of_range")
	}
	return n, nil
}

// parseID 纯数字按十进制解析，format=base62 时强制按 Base62 解析
func parseID(raw, format string) (idgen.ID, error) {
	if format == "base62" {
		return idgen.ParseBase62(raw)
	}
	if isDigits(raw) {
		return idgen.ParseString(raw)
	}
	return idgen.ParseBase62(raw)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
