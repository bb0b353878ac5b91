// Package errors provides structured error types for ogforge.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the HTTP surface and the CLI
//   - Machine-readable error codes mapped onto HTTP status codes
//   - User-facing messages that never carry stack traces
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The taxonomy follows the render pipeline's failure classes:
//   - BAD_REQUEST: unknown extension, unsupported renderer or format
//   - NOT_FOUND: no resolvable options for a path
//   - UPSTREAM_FAILURE: origin fetch failed, redirected, or lacked the payload marker
//   - RENDER_FAILURE: a backend failed to produce bytes
//   - INTERNAL_ERROR: anything unexpected
//
// # Usage
//
//	err := errors.New(errors.ErrCodeBadRequest, "unknown extension %q", ext)
//	if errors.Is(err, errors.ErrCodeBadRequest) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeUpstream, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	ErrCodeBadRequest Code = "BAD_REQUEST"
	ErrCodeNotFound   Code = "NOT_FOUND"
	ErrCodeUpstream   Code = "UPSTREAM_FAILURE"
	ErrCodeRender     Code = "RENDER_FAILURE"
	ErrCodeInternal   Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// BadRequest is shorthand for New(ErrCodeBadRequest, ...).
func BadRequest(format string, args ...any) *Error {
	return New(ErrCodeBadRequest, format, args...)
}

// NotFound is shorthand for New(ErrCodeNotFound, ...).
func NotFound(format string, args ...any) *Error {
	return New(ErrCodeNotFound, format, args...)
}

// Upstream is shorthand for New(ErrCodeUpstream, ...).
func Upstream(format string, args ...any) *Error {
	return New(ErrCodeUpstream, format, args...)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error onto the status code served to clients.
// Errors without a code are treated as internal failures.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUpstream, ErrCodeRender, ErrCodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
