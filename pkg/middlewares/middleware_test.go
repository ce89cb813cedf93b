package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceID(zaptest.NewLogger(t)), Metrics("test"))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})
	return r
}

func TestTraceID_PropagatesIncomingHeader(t *testing.T) {
	r := newTestEngine(t)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(pkg.HeaderTraceId, "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-abc", w.Header().Get(pkg.HeaderTraceId))
	assert.Equal(t, "trace-abc", w.Body.String())
}

func TestTraceID_MintsWhenMissing(t *testing.T) {
	r := newTestEngine(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	traceID := w.Header().Get(pkg.HeaderTraceId)
	assert.Len(t, traceID, 36)
	assert.Equal(t, traceID, w.Body.String())
}
