package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/sirupsen/logrus"
)

const correlationIdHeader = "X-Correlation-Id"

// CorrelationIdMiddleware tags every request with a correlation id, taken
// from the incoming header when present, and echoes it back.
func CorrelationIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationIdHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(
			utils.SetCorrelationIdInContext(c.Request.Context(), id))
		c.Header(correlationIdHeader, id)
		c.Next()
	}
}

// RequestLogMiddleware logs each request with its latency and status.
func RequestLogMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         c.Writer.Status(),
			"latency_ms":     time.Since(start).Milliseconds(),
			"correlation_id": c.Writer.Header().Get(correlationIdHeader),
		}).Info("request")
	}
}

// CorsMiddleware allows the mobile/web clients to call the API from any
// origin.
func CorsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, correlationIdHeader)
	return cors.New(corsConfig)
}
