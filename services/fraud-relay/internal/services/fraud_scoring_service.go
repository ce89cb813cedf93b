package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/dtos"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/utils"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
	"go.uber.org/zap"
)

const maxErrorBodyBytes = 512

// FraudScorer scores a batch of transactions, returning one probability per transaction in input order.
type FraudScorer interface {
	Score(ctx context.Context, txs []views.Transaction) ([]float64, error)
}

// FraudScoringConfig holds configuration for the scoring service client
type FraudScoringConfig struct {
	Logger     *zap.Logger
	BaseURL    string
	Timeout    time.Duration
	MaxConns   int          // connection pool size, normally the scoring concurrency
	HTTPClient *http.Client // optional, built from Timeout and MaxConns when nil
}

// FraudScoringService calls the external model over HTTP.
type FraudScoringService struct {
	logger  *zap.Logger
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewFraudScoringService creates a new scoring client.
func NewFraudScoringService(cfg FraudScoringConfig) *FraudScoringService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = utils.NewHTTPClient(utils.WithClientTimeout(timeout), utils.WithPoolSize(cfg.MaxConns))
	}
	return &FraudScoringService{
		logger:  cfg.Logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		client:  client,
	}
}

// Score posts {"transactions": txs} to /predict.
//
// Failures are classified so the caller can decide what to retry:
//   - the endpoint cannot be reached: connectivity error
//   - timeout, non-2xx, undecodable body, wrong length or an out-of-range probability: scoring error
func (s *FraudScoringService) Score(ctx context.Context, txs []views.Transaction) ([]float64, error) {
	if len(txs) == 0 {
		return nil, pkg.NewScoringError("nothing to score", pkg.ErrEmptyBatch)
	}

	body, err := json.Marshal(dtos.PredictRequest{Transactions: txs})
	if err != nil {
		return nil, pkg.NewSerializationError("failed to encode predict request", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, pkg.NewConfigError("failed to build predict request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(pkg.HeaderRequestId, uuid.New().String())
	traceID := pkg.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	req.Header.Set(pkg.HeaderTraceId, traceID)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		s.logger.Warn("scoring_non_2xx",
			zap.Int("status_code", resp.StatusCode),
			zap.String(pkg.TraceId, traceID),
			zap.ByteString("body", snippet))
		return nil, pkg.NewScoringError(fmt.Sprintf("scoring service returned HTTP %d", resp.StatusCode), nil)
	}

	var out dtos.PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if isTimeout(err) {
			return nil, pkg.NewScoringError("scoring request timed out", err)
		}
		return nil, pkg.NewScoringError("failed to decode predict response", err)
	}
	if len(out.Predictions) != len(txs) {
		return nil, pkg.NewScoringError(
			fmt.Sprintf("got %d predictions for %d transactions", len(out.Predictions), len(txs)),
			pkg.ErrPredictionsLength)
	}
	for i, p := range out.Predictions {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, pkg.NewScoringError(fmt.Sprintf("prediction %d is %v", i, p), pkg.ErrInvalidProbability)
		}
	}

	s.logger.Debug("scoring_completed",
		zap.String(pkg.TraceId, traceID),
		zap.Int("batch_size", len(txs)),
		zap.Duration("latency", time.Since(start)))
	return out.Predictions, nil
}

// Health calls GET /health on the scoring service.
func (s *FraudScoringService) Health(ctx context.Context) (dtos.HealthResponse, error) {
	var out dtos.HealthResponse

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return out, pkg.NewConfigError("failed to build health request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return out, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, pkg.NewScoringError(fmt.Sprintf("health check returned HTTP %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, pkg.NewScoringError("failed to decode health response", err)
	}
	return out, nil
}

// classifyTransportError maps an error from http.Client.Do onto the relay taxonomy.
// A failed dial is a connectivity problem; a request that connected but ran out of time is a scoring failure.
func classifyTransportError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return pkg.NewConnectivityError("scoring service unreachable", err)
	}
	if isTimeout(err) {
		return pkg.NewScoringError("scoring request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return pkg.NewScoringError("scoring request cancelled", err)
	}
	return pkg.NewConnectivityError("scoring request failed in transport", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
