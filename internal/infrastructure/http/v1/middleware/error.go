package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gamestore/internal/core/apperror"
	"gamestore/internal/infrastructure/http/v1/dto"
	"gamestore/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil || appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}

			body := dto.ErrorResponse{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				body.Details = map[string]any{"request_id": c.GetString("request_id")}
			}

			failIdempotency(c, appErr.HTTPStatus, appErr.Retryable, body)
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		logger.Error(c.Request.Context(), "unhandled error",
			"error", err,
		)

		body := dto.ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{
				"request_id": c.GetString("request_id"),
			},
		}

		failIdempotency(c, http.StatusInternalServerError, false, body)
		c.JSON(http.StatusInternalServerError, body)
	}
}
