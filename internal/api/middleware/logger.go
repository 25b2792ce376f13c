package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestRecorder receives per-request metrics.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, code int, took time.Duration)
}

func Logger(logger *zap.Logger, recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		method := c.Request.Method
		statusCode := c.Writer.Status()

		if recorder != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			recorder.RecordHTTPRequest(method, route, statusCode, latency)
		}

		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info("HTTP Request",
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("subject", c.GetString(SubjectKey)),
		)
	}
}
