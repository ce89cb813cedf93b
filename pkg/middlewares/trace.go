package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/utils"
	"go.uber.org/zap"
)

// TraceID returns Gin middleware that propagates X-Trace-Id (minting one if absent)
// and logs each request with it.
func TraceID(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.Request.Header.Get(pkg.HeaderTraceId)
		if utils.IsEmpty(traceID) {
			traceID = uuid.New().String()
		}
		c.Set(pkg.TraceId, traceID)
		c.Writer.Header().Set(pkg.HeaderTraceId, traceID)

		c.Next()

		logger.Debug("http_request",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.RequestId, c.Request.Header.Get(pkg.HeaderRequestId)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	}
}

// GetTraceID returns the trace id set by TraceID, or "" outside the middleware chain.
func GetTraceID(c *gin.Context) string {
	return c.GetString(pkg.TraceId)
}
