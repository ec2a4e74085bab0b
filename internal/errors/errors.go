// Package errors defines the typed error taxonomy for the engine. Every
// business-rule failure is returned as an *Error carrying a stable code and
// the HTTP status the API layer should map it to.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the failure class independent of the message text.
type Code string

const (
	CodeValidation             Code = "validation"
	CodeNotFound               Code = "not_found"
	CodeInsufficientBalance    Code = "insufficient_balance"
	CodeRateLimitExceeded      Code = "rate_limit_exceeded"
	CodeInvalidStateTransition Code = "invalid_state_transition"
	CodeExpired                Code = "expired"
	CodeInternal               Code = "internal"
)

// Error is a typed engine error.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is matches two engine errors by code so sentinel-style checks work:
//
//	errors.Is(err, &Error{Code: CodeNotFound})
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// HTTPStatus returns the HTTP status an error maps to. Unknown errors map to
// 500.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) && e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Validation reports malformed or out-of-range input.
func Validation(format string, args ...interface{}) *Error {
	return &Error{
		Code:       CodeValidation,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusBadRequest,
	}
}

// NotFound reports an unknown entity id.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s %s not found", resource, id),
		HTTPStatus: http.StatusNotFound,
	}
}

// InsufficientBalance reports a spend larger than the current balance.
func InsufficientBalance(balance, required int64) *Error {
	return &Error{
		Code:       CodeInsufficientBalance,
		Message:    fmt.Sprintf("balance %d is below required %d", balance, required),
		HTTPStatus: http.StatusConflict,
	}
}

// RateLimitExceeded reports that a rolling-window limit was hit.
func RateLimitExceeded(limit int, window string) *Error {
	return &Error{
		Code:       CodeRateLimitExceeded,
		Message:    fmt.Sprintf("limit of %d per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// InvalidStateTransition reports an operation applied in the wrong state.
func InvalidStateTransition(entity, from, to string) *Error {
	return &Error{
		Code:       CodeInvalidStateTransition,
		Message:    fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		HTTPStatus: http.StatusConflict,
	}
}

// Expired reports a reference to an entity past its expiry.
func Expired(entity, id string) *Error {
	return &Error{
		Code:       CodeExpired,
		Message:    fmt.Sprintf("%s %s has expired", entity, id),
		HTTPStatus: http.StatusGone,
	}
}

// Internal wraps an unexpected failure such as a store I/O error.
func Internal(msg string, err error) *Error {
	return &Error{
		Code:       CodeInternal,
		Message:    msg,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
