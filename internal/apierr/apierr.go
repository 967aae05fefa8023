package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/logger"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps the domain taxonomy onto an HTTP status and code.
// Unknown errors are treated as internal.
func FromError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return New(http.StatusBadRequest, "validation_error", err)
	case errors.Is(err, domain.ErrNoAvailableNumbers):
		return New(http.StatusServiceUnavailable, "no_available_numbers", err)
	case errors.Is(err, domain.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, domain.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, domain.ErrUnauthenticated):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, domain.ErrForbidden):
		return New(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, domain.ErrRateLimited):
		return New(http.StatusTooManyRequests, "rate_limited", err)
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return New(http.StatusGatewayTimeout, "upstream_timeout", err)
	case errors.Is(err, domain.ErrAssignmentPersist):
		return New(http.StatusInternalServerError, "assignment_persist_failed", err)
	case errors.Is(err, domain.ErrStorage):
		return New(http.StatusInternalServerError, "storage_error", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}

// Message is the body text for e. 5xx responses only carry the first
// segment of the chain so driver detail stays in the logs.
func (e *Error) Message() string {
	msg := e.Error()
	if e.Status >= http.StatusInternalServerError {
		if i := strings.Index(msg, ":"); i > 0 {
			msg = msg[:i]
		}
	}
	return msg
}

// Respond writes {"error", "code"} and aborts. Server errors are logged.
func Respond(c *gin.Context, err error) {
	ae := FromError(err)
	if ae.Status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", zap.String("code", ae.Code), zap.Error(err))
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(ae.Status, gin.H{"error": ae.Message(), "code": ae.Code})
}
