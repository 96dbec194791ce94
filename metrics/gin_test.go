package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	records [][]Label
}

func (r *recorder) capture(labels []Label) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, append([]Label(nil), labels...))
}

func (r *recorder) Inc(_ context.Context, labels ...Label)               { r.capture(labels) }
func (r *recorder) Add(_ context.Context, _ float64, labels ...Label)    { r.capture(labels) }
func (r *recorder) Record(_ context.Context, _ float64, labels ...Label) { r.capture(labels) }

func labelValue(labels []Label, key string) string {
	for _, l := range labels {
		if l.Key == key {
			return l.Value
		}
	}
	return ""
}

func newTestRouter(counter *recorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := &HTTPServerMetrics{service: "flake", requestTotal: counter, duration: &recorder{}}
	r := gin.New()
	r.Use(GinHTTPMiddleware(m))
	r.GET("/v1/ids/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func TestGinHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantRoute   string
		wantClass   string
		wantOutcome string
	}{
		{"route template", "/v1/ids/123", http.StatusOK, "/v1/ids/:id", "2xx", OutcomeSuccess},
		{"unmatched path", "/random/scan", http.StatusNotFound, UnknownRoute, "4xx", OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &recorder{}
			w := httptest.NewRecorder()
			newTestRouter(counter).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			require.Len(t, counter.records, 1)
			labels := counter.records[0]
			assert.Equal(t, tt.wantRoute, labelValue(labels, LabelRoute))
			assert.Equal(t, tt.wantClass, labelValue(labels, LabelStatusClass))
			assert.Equal(t, tt.wantOutcome, labelValue(labels, LabelOutcome))
			assert.Equal(t, "flake", labelValue(labels, LabelService))
			assert.Equal(t, http.MethodGet, labelValue(labels, LabelMethod))
		})
	}
}

func TestGinHTTPMiddlewareNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinHTTPMiddleware(nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "pong", w.Body.String())
}

func TestGinHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := New(NewDevDefaultConfig("flake-test"))
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	c, err := m.Counter("gin_handler_hits_total", "hits")
	require.NoError(t, err)
	c.Inc(context.Background())

	r := gin.New()
	r.GET("/metrics", GinHandler(m))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(w.Body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body), "gin_handler_hits_total")
}
