package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/metrics"
	"github.com/ceyewan/flake/ratelimit"
	"github.com/ceyewan/flake/testkit"
	"github.com/ceyewan/flake/xerrors"
)

const testEpoch = idgen.DefaultEpoch

func init() {
	gin.SetMode(gin.TestMode)
}

// manualClock 时间只由测试推进，Sleep 不改变时间
type manualClock struct {
	mu sync.Mutex
	ms int64
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.UnixMilli(c.ms)
}

func (c *manualClock) Sleep(time.Duration) {}

func (c *manualClock) set(ms int64) {
	c.mu.Lock()
	c.ms = ms
	c.mu.Unlock()
}

// stubConnector 健康检查结果可控
type stubConnector struct {
	name string
	err  error
}

func (s stubConnector) Connect(context.Context) error     { return nil }
func (s stubConnector) Close() error                      { return nil }
func (s stubConnector) HealthCheck(context.Context) error { return s.err }
func (s stubConnector) IsHealthy() bool                   { return s.err == nil }
func (s stubConnector) Name() string                      { return s.name }

func newTestServer(t *testing.T, clk *manualClock, cfg *Config, opts ...Option) *Server {
	t.Helper()

	gen, err := idgen.New(idgen.DefaultConfig(1, 1), idgen.WithClock(clk))
	require.NoError(t, err)

	srv, err := New(gen, cfg, append([]Option{WithLogger(testkit.NewLogger())}, opts...)...)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *Server, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, nil)
	assert.Equal(t, ":8080", srv.cfg.Addr)
	assert.Equal(t, 1000, srv.cfg.MaxBatch)
	assert.Equal(t, 10*time.Second, srv.cfg.ShutdownTimeout)

	gen, err := idgen.New(idgen.DefaultConfig(1, 1))
	require.NoError(t, err)
	_, err = New(gen, &Config{BatchLimit: ratelimit.Limit{Rate: 10}})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestHandleNext(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, nil)

	w, body := get(t, srv, "/v1/ids/next")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "20971655168", body["id"])

	_, body = get(t, srv, "/v1/ids/next")
	assert.Equal(t, "20971655169", body["id"])
}

func TestHandleNextClockRollback(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, nil)

	w, _ := get(t, srv, "/v1/ids/next")
	require.Equal(t, http.StatusOK, w.Code)

	clk.set(testEpoch + 2500)
	w, body := get(t, srv, "/v1/ids/next")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))
	assert.Contains(t, body["error"], "clock moved backward")

	clk.set(testEpoch + 5001)
	w, _ = get(t, srv, "/v1/ids/next")
	assert.Equal(t, http.StatusOK, w.Code, "recovers once the clock catches up")
}

func TestHandleBatch(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, &Config{MaxBatch: 100})

	tests := []struct {
		name   string
		query  string
		status int
		count  int
		code   string
	}{
		{"default one", "", http.StatusOK, 1, ""},
		{"three", "?count=3", http.StatusOK, 3, ""},
		{"upper bound", "?count=100", http.StatusOK, 100, ""},
		{"zero", "?count=0", http.StatusBadRequest, 0, "count_out_of_range"},
		{"too many", "?count=101", http.StatusBadRequest, 0, "count_out_of_range"},
		{"not a number", "?count=abc", http.StatusBadRequest, 0, "count_invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := get(t, srv, "/v1/ids"+tt.query)
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.Equal(t, tt.code, body["code"])
				return
			}
			ids := body["ids"].([]any)
			assert.Len(t, ids, tt.count)
			assert.EqualValues(t, tt.count, body["count"])
		})
	}
}

func TestHandleBatchUnique(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, nil)

	_, body := get(t, srv, "/v1/ids?count=1000")
	seen := make(map[string]struct{})
	for _, v := range body["ids"].([]any) {
		seen[v.(string)] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}

func TestHandleBatchRateLimited(t *testing.T) {
	limiter, err := ratelimit.NewStandalone(nil)
	require.NoError(t, err)
	defer limiter.Close()

	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, &Config{BatchLimit: ratelimit.Limit{Rate: 0.1, Burst: 10}}, WithLimiter(limiter))

	w, _ := get(t, srv, "/v1/ids?count=8")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))

	w, _ = get(t, srv, "/v1/ids?count=5")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 单个生成不受批量限流影响
	w, _ = get(t, srv, "/v1/ids/next")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleDecode(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, nil)
	id := idgen.ID(20971655168)

	for _, target := range []string{
		"/v1/ids/20971655168",
		"/v1/ids/" + id.Base62(),
		"/v1/ids/" + id.Base62() + "?format=base62",
	} {
		t.Run(target, func(t *testing.T) {
			w, body := get(t, srv, target)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "20971655168", body["id"])
			assert.EqualValues(t, 5000, body["timestamp"])
			assert.EqualValues(t, 1, body["datacenter_id"])
			assert.EqualValues(t, 1, body["worker_id"])
			assert.EqualValues(t, 0, body["sequence"])
			assert.Equal(t, "2021-01-01T00:00:05Z", body["time"])
			assert.Equal(t, id.Base62(), body["base62"])
		})
	}

	for _, bad := range []string{"not-base62!", "9223372036854775808", "aaaaaaaaaaaaaaaa"} {
		w, _ := get(t, srv, "/v1/ids/"+bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestHandleUUID(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}

	u4, err := idgen.NewUUID(idgen.WithUUIDVersion("v4"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		opts    []Option
		version uuid.Version
	}{
		{"default v7", nil, 7},
		{"v4", []Option{WithUUID(u4)}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, clk, nil, tt.opts...)
			w, body := get(t, srv, "/v1/uuid")
			require.Equal(t, http.StatusOK, w.Code)

			parsed, err := uuid.Parse(body["uuid"].(string))
			require.NoError(t, err)
			assert.Equal(t, tt.version, parsed.Version())
		})
	}
}

func TestHandleHealth(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}

	sqlite := testkit.NewSQLiteConnector(t)
	srv := newTestServer(t, clk, nil, WithHealthChecks(sqlite, nil))
	w, body := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{sqlite.Name(): "ok"}, body["checks"])

	srv = newTestServer(t, clk, nil, WithHealthChecks(sqlite, stubConnector{name: "cache", err: errors.New("ping: i/o timeout")}))
	w, body = get(t, srv, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ping: i/o timeout", body["checks"].(map[string]any)["cache"])
}

func TestMetricsEndpoint(t *testing.T) {
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "server-test"})
	require.NoError(t, err)
	defer meter.Shutdown(context.Background())

	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, nil, WithMeter(meter))

	get(t, srv, "/v1/ids/next")
	w, _ := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), metrics.MetricHTTPServerRequestTotal)
	assert.Regexp(t, `route="/v1/ids/next"`, w.Body.String())
}

func TestServeGracefulShutdown(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, &Config{ShutdownTimeout: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/ids/next")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunListenError(t *testing.T) {
	clk := &manualClock{ms: testEpoch + 5000}
	srv := newTestServer(t, clk, &Config{Addr: "256.0.0.1:bad"})
	assert.Error(t, srv.Run(context.Background()))
}
