package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/dtos"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newScoringServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newTestScorer(t *testing.T, url string, timeout time.Duration) *FraudScoringService {
	return NewFraudScoringService(FraudScoringConfig{
		Logger:  zaptest.NewLogger(t),
		BaseURL: url,
		Timeout: timeout,
	})
}

func predictions(ps ...float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dtos.PredictResponse{Predictions: ps})
	}
}

func TestScore_PostsBatchAndReturnsPredictions(t *testing.T) {
	var got dtos.PredictRequest
	var traceID string
	srv := newScoringServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		traceID = r.Header.Get(pkg.HeaderTraceId)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		predictions(0.95, 0.3)(w, r)
	})

	scorer := newTestScorer(t, srv.URL+"/", time.Second)
	ctx := pkg.ContextWithTraceID(context.Background(), "trace-1")
	probs, err := scorer.Score(ctx, []views.Transaction{{TransactionID: "a", Amount: 1}, {TransactionID: "b", Amount: 2}})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.95, 0.3}, probs)
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, "a", got.Transactions[0].TransactionID)
	assert.Equal(t, "trace-1", traceID)
}

func TestScore_EmptyBatch(t *testing.T) {
	scorer := newTestScorer(t, "http://127.0.0.1:1", time.Second)
	_, err := scorer.Score(context.Background(), nil)
	require.ErrorIs(t, err, pkg.ErrEmptyBatch)
}

func TestScore_Non2xxIsScoringError(t *testing.T) {
	srv := newScoringServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := newTestScorer(t, srv.URL, time.Second).Score(context.Background(), []views.Transaction{{TransactionID: "a"}})
	require.Error(t, err)
	assert.True(t, pkg.IsScoringError(err))
	assert.False(t, pkg.IsConnectivityError(err))
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestScore_LengthMismatchIsScoringError(t *testing.T) {
	srv := newScoringServer(t, predictions(0.1))

	_, err := newTestScorer(t, srv.URL, time.Second).Score(context.Background(),
		[]views.Transaction{{TransactionID: "a"}, {TransactionID: "b"}})
	require.ErrorIs(t, err, pkg.ErrPredictionsLength)
	assert.True(t, pkg.IsScoringError(err))
}

func TestScore_OutOfRangeProbabilityIsScoringError(t *testing.T) {
	srv := newScoringServer(t, predictions(1.5))

	_, err := newTestScorer(t, srv.URL, time.Second).Score(context.Background(), []views.Transaction{{TransactionID: "a"}})
	require.ErrorIs(t, err, pkg.ErrInvalidProbability)
}

func TestScore_MalformedBodyIsScoringError(t *testing.T) {
	srv := newScoringServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions": "nope"`))
	})

	_, err := newTestScorer(t, srv.URL, time.Second).Score(context.Background(), []views.Transaction{{TransactionID: "a"}})
	require.Error(t, err)
	assert.True(t, pkg.IsScoringError(err))
}

func TestScore_TimeoutIsScoringError(t *testing.T) {
	srv := newScoringServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := newTestScorer(t, srv.URL, 50*time.Millisecond).Score(context.Background(), []views.Transaction{{TransactionID: "a"}})
	require.Error(t, err)
	assert.True(t, pkg.IsScoringError(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestScore_UnreachableIsConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestScorer(t, url, time.Second).Score(context.Background(), []views.Transaction{{TransactionID: "a"}})
	require.Error(t, err)
	assert.True(t, pkg.IsConnectivityError(err))
}

func TestHealth(t *testing.T) {
	srv := newScoringServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(dtos.HealthResponse{Status: "healthy", Service: "fraud-detection-api", ModelLoaded: true})
	})

	h, err := newTestScorer(t, srv.URL, time.Second).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.ModelLoaded)
}
