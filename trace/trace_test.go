package trace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/flake/xerrors"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil", cfg: nil, wantErr: true},
		{name: "default", cfg: DefaultConfig("flake")},
		{name: "missing service", cfg: &Config{Enabled: true, Endpoint: "x:4317"}, wantErr: true},
		{name: "missing endpoint", cfg: &Config{Enabled: true, ServiceName: "flake"}, wantErr: true},
		{name: "sampler out of range", cfg: &Config{Enabled: true, ServiceName: "flake", Endpoint: "x:4317", Sampler: 1.5}, wantErr: true},
		{name: "bad batcher", cfg: &Config{Enabled: true, ServiceName: "flake", Endpoint: "x:4317", Batcher: "async"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDisabledInitProducesTraceIDs(t *testing.T) {
	shutdown, err := Init(&Config{Enabled: false, ServiceName: "flake-test"})
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.SpanContext().TraceID().IsValid())
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	install(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

func TestStartSpanAndMarkError(t *testing.T) {
	rec := installRecorder(t)

	var nilCtx context.Context
	ctx, span := StartSpan(nilCtx, nil, SpanNameIDGenNext, attribute.Int64(AttrIDGenWorkerID, 3))
	assert.True(t, oteltrace.SpanContextFromContext(ctx).IsValid())
	MarkSpanError(span, errors.New("clock moved backwards"))
	MarkSpanError(span, nil)
	MarkSpanError(nil, errors.New("ignored"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, SpanNameIDGenNext, ended[0].Name())
	assert.Equal(t, oteltrace.SpanKindInternal, ended[0].SpanKind())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.Int64(AttrIDGenWorkerID, 3))
	require.Len(t, ended[0].Events(), 1)
}

func TestGinMiddleware(t *testing.T) {
	rec := installRecorder(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(GinMiddleware("flake-test"))
	r.GET("/v1/ids/:id", func(c *gin.Context) {
		assert.True(t, oteltrace.SpanContextFromContext(c.Request.Context()).IsValid())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ids/1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Len(t, rec.Ended(), 1)
	span := rec.Ended()[0]
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, oteltrace.SpanKindServer, span.SpanKind())
}
