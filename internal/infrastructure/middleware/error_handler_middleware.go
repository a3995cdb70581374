package middleware

import (
	"net/http"
	"strconv"

	"tempvoice/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders the last error attached to the context.
// AppErrors keep their status and code; anything else becomes a 500.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			logger.Errorw("unhandled error",
				"error", err.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			render(c, errors.NewInternalError("Internal server error"))
			return
		}

		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("request failed",
				"code", appErr.Code,
				"message", appErr.Message,
				"cause", appErr.Cause,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		} else {
			logger.Debugw("request rejected",
				"code", appErr.Code,
				"message", appErr.Message,
				"path", c.Request.URL.Path,
				"context", appErr.Context,
			)
		}

		render(c, appErr)
	}
}

// abortWith stops the chain and renders appErr. Middleware that rejects a
// request before any handler runs uses it instead of c.Error.
func abortWith(c *gin.Context, appErr *errors.AppError) {
	c.Abort()
	render(c, appErr)
}

func render(c *gin.Context, appErr *errors.AppError) {
	if retryAt, ok := appErr.Context["retry_at"].(string); ok {
		c.Header("X-Retry-At", retryAt)
	}
	if seconds, ok := appErr.Context["retry_after"].(int); ok {
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	c.JSON(appErr.HTTPStatus, appErr.Response())
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				abortWith(c, errors.NewInternalError("Internal server error"))
			}
		}()

		c.Next()
	}
}
