package api

import (
	"errors"
	"net/http"

	"github.com/QTuan97/HC-API-Plat/control-plane/logger"
	"github.com/QTuan97/HC-API-Plat/control-plane/middleware"
	"github.com/QTuan97/HC-API-Plat/control-plane/service"
	"github.com/QTuan97/HC-API-Plat/control-plane/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// resourceKey names the resource a handler works on, for error messages.
const resourceKey = "api.resource"

// ErrorHandlerMiddleware turns errors attached to the gin context into
// plain-text responses.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process the request
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, message := describeError(err, c.GetString(resourceKey))

		log := logger.WithComponent("api")
		if requestID := c.GetString(middleware.RequestIDKey); requestID != "" {
			log = logger.WithRequestID(requestID).With(zap.String("component", "api"))
		}
		var detailed *service.DetailedError
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err))
		case errors.As(err, &detailed):
			log.Warn("Request rejected",
				zap.String("path", c.FullPath()),
				zap.String("code", detailed.Code),
				zap.Any("details", detailed.Details))
		}
		c.String(status, message)
	}
}

// describeError maps an error to an HTTP status and the text shown to the user.
func describeError(err error, resource string) (int, string) {
	if resource == "" {
		resource = "Resource"
	}

	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict, resource + " already exists"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, resource + " not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// withResource tags the request with the resource name used in error text.
func withResource(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(resourceKey, resource)
		c.Next()
	}
}
