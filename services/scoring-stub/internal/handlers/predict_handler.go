package handlers

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/dtos"
	middleware "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/middlewares"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const serviceName = "fraud-detection-api"

// predictions with p > 0.5, the same cut the production model reports on
var fraudPredictions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fraud_detection_predictions_total",
	Help: "Total number of transactions predicted as fraud",
})

// Model scores transactions in order.
type Model interface {
	PredictBatch(txs []views.Transaction) []float64
}

type PredictHandler struct {
	logger        *zap.Logger
	model         Model
	failureRate   float64
	responseDelay time.Duration
	roll          func() float64 // uniform in [0,1)
}

func NewPredictHandler(logger *zap.Logger, model Model, failureRate float64, responseDelay time.Duration) *PredictHandler {
	return &PredictHandler{
		logger:        logger,
		model:         model,
		failureRate:   failureRate,
		responseDelay: responseDelay,
		roll:          rand.Float64,
	}
}

func (h *PredictHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.GetRoot)
	r.GET("/health", h.GetHealth)
	r.POST("/predict", h.Predict)
}

func (h *PredictHandler) GetRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Fraud Detection API is running",
	})
}

func (h *PredictHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, dtos.HealthResponse{
		Status:         "healthy",
		Service:        serviceName,
		ModelLoaded:    h.model != nil,
		UsingMockModel: true,
	})
}

// Predict answers {"predictions": [...]} with one probability per transaction.
func (h *PredictHandler) Predict(c *gin.Context) {
	traceID := middleware.GetTraceID(c)

	var req dtos.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid request body", err))
		c.JSON(resp.Status, resp)
		return
	}

	if h.responseDelay > 0 {
		select {
		case <-c.Request.Context().Done():
			return
		case <-time.After(h.responseDelay):
		}
	}

	if h.failureRate > 0 && h.roll() < h.failureRate {
		resp := pkg.ToErrorResponse(h.logger, traceID, pkg.NewAppError(pkg.ErrServerCode, "injected failure", nil))
		c.JSON(resp.Status, resp)
		return
	}

	probs := h.model.PredictBatch(req.Transactions)
	flagged := 0
	for _, p := range probs {
		if p > 0.5 {
			flagged++
		}
	}
	fraudPredictions.Add(float64(flagged))

	h.logger.Debug("predictions_served",
		zap.String(pkg.TraceId, traceID),
		zap.Int("batch_size", len(probs)),
		zap.Int("flagged", flagged))
	c.JSON(http.StatusOK, dtos.PredictResponse{Predictions: probs})
}
