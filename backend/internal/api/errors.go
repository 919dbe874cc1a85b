package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "diarymap/backend/pkg/errors"
)

// Error codes returned in the "code" field of error bodies.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnavailable  = "store_unavailable"
	ErrCodeInternal     = "internal_error"
)

// statusOf maps an application error onto an HTTP status and error code.
func statusOf(err error) (int, string) {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest, ErrCodeBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, ErrCodeNotFound
	case apperrors.IsErrorType(err, apperrors.ErrorTypeAuth):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case apperrors.IsRetryable(err):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// publicMessage hides wrapped transport details from clients.
func publicMessage(err error, status int) string {
	var validation *apperrors.ErrValidationFailed
	var unauthorized *apperrors.ErrUnauthorized
	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &unauthorized):
		return unauthorized.Reason
	case status == http.StatusNotFound:
		return err.Error()
	case status == http.StatusServiceUnavailable:
		return "storage temporarily unavailable"
	default:
		return "internal error"
	}
}

func abortWithError(c *gin.Context, err error) {
	status, code := statusOf(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"code":  code,
		"error": publicMessage(err, status),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"code":  ErrCodeBadRequest,
		"error": msg,
	})
}
