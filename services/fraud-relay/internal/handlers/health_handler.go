package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	middleware "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/middlewares"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/fraud-relay/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StateReporter exposes the relay lifecycle state.
type StateReporter interface {
	State() services.RelayState
}

type HealthHandler struct {
	logger *zap.Logger
	relay  StateReporter
}

func NewHealthHandler(logger *zap.Logger, relay StateReporter) *HealthHandler {
	return &HealthHandler{logger: logger, relay: relay}
}

func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// GetHealth reports ok while the relay loop is alive and 503 once it has stopped.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	state := h.relay.State()
	if state == services.StateStopped {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "stopped",
			"state":  state.String(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  state.String(),
	})
}

// NewRouter builds the relay's observability engine.
func NewRouter(logger *zap.Logger, relay StateReporter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics("fraud-relay"))
	NewHealthHandler(logger, relay).RegisterRoutes(r)
	return r
}
