package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/arpatel/calendar-api/pkg/errors"
	"github.com/arpatel/calendar-api/pkg/logger"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler turns errors attached to the context into one JSON
// response, mapping application error codes to HTTP statuses.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error(e.Err, "Request error",
				"request_id", requestID,
				"path", c.Request.URL.Path,
				"method", c.Request.Method)
		}

		lastErr := c.Errors.Last()
		status := statusFor(lastErr.Err)

		c.JSON(status, ErrorResponse{
			Code:      status,
			Message:   lastErr.Error(),
			RequestID: requestID,
		})
	}
}

func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest, apperrors.ErrValidation:
		return http.StatusBadRequest
	case apperrors.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
