package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/dtos"
	middleware "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/middlewares"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type constModel float64

func (m constModel) PredictBatch(txs []views.Transaction) []float64 {
	out := make([]float64, len(txs))
	for i := range out {
		out[i] = float64(m)
	}
	return out
}

func newTestRouter(t *testing.T, h *PredictHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.TraceID(zaptest.NewLogger(t)))
	h.RegisterRoutes(r)
	return r
}

func postPredict(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPredict_OneProbabilityPerTransaction(t *testing.T) {
	r := newTestRouter(t, NewPredictHandler(zaptest.NewLogger(t), constModel(0.7), 0, 0))

	w := postPredict(t, r, `{"transactions":[{"V1":1,"Amount":2},{"V2":3,"Amount":4}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp dtos.PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []float64{0.7, 0.7}, resp.Predictions)
}

func TestPredict_RejectsEmptyBatch(t *testing.T) {
	r := newTestRouter(t, NewPredictHandler(zaptest.NewLogger(t), constModel(0.7), 0, 0))

	for _, body := range []string{`{"transactions":[]}`, `{}`, `not json`} {
		w := postPredict(t, r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)

		var resp pkg.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, pkg.ErrInvalidInputCode.Code, resp.Code)
	}
}

func TestPredict_InjectedFailure(t *testing.T) {
	h := NewPredictHandler(zaptest.NewLogger(t), constModel(0.7), 0.5, 0)
	h.roll = func() float64 { return 0.1 }
	r := newTestRouter(t, h)

	w := postPredict(t, r, `{"transactions":[{"Amount":1}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), pkg.ErrServerCode.Code)

	h.roll = func() float64 { return 0.9 }
	w = postPredict(t, r, `{"transactions":[{"Amount":1}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetHealth(t *testing.T) {
	r := newTestRouter(t, NewPredictHandler(zaptest.NewLogger(t), constModel(0), 0, 0))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dtos.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dtos.HealthResponse{Status: "healthy", Service: "fraud-detection-api", ModelLoaded: true, UsingMockModel: true}, resp)
}
