package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kbtrial/internal/handlers"
)

// RequestLogger logs every request once it has been handled. Key events are
// frequent, so successful requests are logged at debug level.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if participantID := c.GetString(handlers.ParticipantContextKey); participantID != "" {
			fields = append(fields, zap.String("participant_id", participantID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			log.Debug("Request processed", fields...)
		}
	}
}
