package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/fraud-relay/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixedState services.RelayState

func (s fixedState) State() services.RelayState { return services.RelayState(s) }

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGetHealth_Running(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := get(t, NewRouter(zaptest.NewLogger(t), fixedState(services.StateFetching)), "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "fetching", body["state"])
}

func TestGetHealth_Stopped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := get(t, NewRouter(zaptest.NewLogger(t), fixedState(services.StateStopped)), "/health")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"stopped"`)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(zaptest.NewLogger(t), fixedState(services.StateIdle))
	get(t, r, "/health")

	w := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fraud_scoring_http_requests_total")
}
