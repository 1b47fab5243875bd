package middleware

import (
	"time"

	"github.com/QTuan97/HC-API-Plat/control-plane/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey stores the request ID in the gin context.
	RequestIDKey = "request_id"
)

// LoggingMiddleware creates a structured logging middleware for Gin
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		duration := time.Since(start)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", raw),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Duration("latency", duration),
			zap.Int("response_size", c.Writer.Size()),
		}

		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		// Log based on status code
		statusCode := c.Writer.Status()
		message := "HTTP Request"
		log := logger.WithComponent("http")
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			log = logger.WithRequestID(requestID).With(zap.String("component", "http"))
		}

		switch {
		case statusCode >= 500:
			log.Error(message, fields...)
		case statusCode >= 400:
			log.Warn(message, fields...)
		default:
			log.Info(message, fields...)
		}
	}
}

// RequestIDMiddleware adds a request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set(RequestIDKey, requestID)
		c.Next()
	}
}
