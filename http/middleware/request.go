package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Maestro-111/search-engine/infra"
)

const requestIDHeader = "X-Request-ID"

// RequestMiddleware tags the request context with a request id and logs the
// outcome of every request.
func RequestMiddleware(logger *infra.LoggerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		ctx := infra.WithLogAttrs(c.Request.Context(), slog.String("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= 500 {
			logger.WarningWithContextf(ctx, "[HTTP] %s %s -> %d in %s", c.Request.Method, c.FullPath(), status, time.Since(start))
			return
		}
		logger.DebugWithContextf(ctx, "[HTTP] %s %s -> %d in %s", c.Request.Method, c.FullPath(), status, time.Since(start))
	}
}
