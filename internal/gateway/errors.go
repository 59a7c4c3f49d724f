package gateway

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for backend calls.
type ErrorCategory string

const (
	ErrorUnauthorized   ErrorCategory = "unauthorized"
	ErrorNotFound       ErrorCategory = "not_found"
	ErrorBadRequest     ErrorCategory = "bad_request"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorUpstreamOutage ErrorCategory = "upstream_outage"
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorInternal       ErrorCategory = "internal"
)

// Error wraps a failed backend call.
type Error struct {
	Category   ErrorCategory
	Op         string
	Status     int
	Message    string // backend-provided message when present
	Underlying error
	Retryable  bool // timeout, outage and rate-limited
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("backend %s [%s]: %s: %v", e.Op, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("backend %s [%s]: %s", e.Op, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds an Error and derives Retryable from the category.
func NewError(category ErrorCategory, op string, status int, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Op:         op,
		Status:     status,
		Message:    message,
		Underlying: underlying,
		Retryable: category == ErrorTimeout ||
			category == ErrorUpstreamOutage ||
			category == ErrorRateLimited,
	}
}

// CategoryOf extracts the category, defaulting to ErrorInternal.
func CategoryOf(err error) ErrorCategory {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ErrorInternal
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// IsUnauthorized reports whether the backend rejected the bearer token.
func IsUnauthorized(err error) bool {
	return CategoryOf(err) == ErrorUnauthorized
}

// ErrCircuitOpen is returned without contacting the backend while the breaker is open.
var ErrCircuitOpen = errors.New("backend circuit open")

// countsAgainstBreaker reports whether err signals an unhealthy backend rather
// than a rejected request.
func countsAgainstBreaker(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	switch ge.Category {
	case ErrorUpstreamOutage, ErrorTimeout:
		return true
	}
	return ge.Status >= 500
}

// Describe returns the backend's own message for err when it sent one,
// otherwise err's text.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return err.Error()
}
