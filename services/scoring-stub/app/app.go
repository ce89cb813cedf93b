package app

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	middleware "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/middlewares"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/scoring-stub/configs"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/scoring-stub/internal/handlers"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/scoring-stub/internal/model"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter builds the Gin engine for the stub.
func NewRouter(logger *zap.Logger, cfg *configs.Config) *gin.Engine {
	predictHandler := handlers.NewPredictHandler(logger, model.NewLogistic(), cfg.FailureRate, cfg.ResponseDelay)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceID(logger))
	r.Use(middleware.Metrics("scoring-stub"))

	predictHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// NewApp loads configuration and returns the stub's *http.Server.
func NewApp(logger *zap.Logger) (*http.Server, error) {
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, err
	}
	logger.Info("scoring_stub_configured",
		zap.String("port", cfg.Port),
		zap.Float64("failure_rate", cfg.FailureRate),
		zap.Duration("response_delay", cfg.ResponseDelay))

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: NewRouter(logger, cfg),
	}, nil
}
