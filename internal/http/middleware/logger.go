package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"fleetops/internal/logging"
)

// Logger writes one access line per request including request_id.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	logger = logging.Default(logger).With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
			"ip", c.ClientIP(),
		)
	}
}
