package domainerrors

import "errors"

// Code represents an error category independent of transport layer.
// The console surfaces three recoverable failure kinds (fetch, mutation,
// validation); the remaining codes describe upstream or request conditions.
type Code string

const (
	CodeFetchFailed    Code = "fetch_failed"
	CodeMutationFailed Code = "mutation_failed"
	CodeValidation     Code = "validation_failed"
	CodeNotFound       Code = "not_found"
	CodeBadRequest     Code = "bad_request"
	CodeTooLarge       Code = "payload_too_large"
	CodeUnauthorized   Code = "unauthorized"
	CodeConflict       Code = "conflict"
	CodeTimeout        Code = "timeout"
	CodeUnavailable    Code = "upstream_unavailable"
	CodeInvalidState   Code = "invalid_state"
	CodeInternal       Code = "internal_error"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across controller, gateway and handler layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Reclassify wraps err under code regardless of any code already carried by err.
// Controllers use it to report an upstream not_found as a fetch failure while
// keeping the cause reachable through errors.As.
func Reclassify(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the outermost domain code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Message returns the human-readable message of err, falling back to fallback
// when err carries no message of its own.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err != nil && fallback == "" {
		return err.Error()
	}
	return fallback
}
