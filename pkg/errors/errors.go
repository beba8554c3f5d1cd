// Package errors provides structured error types for refgraph.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, HTTP API and library callers
//   - Machine-readable error codes for programmatic handling
//   - A distinguishable abort signal for cancelled updates
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The codes follow the failure taxonomy of the cache engine:
//   - ABORTED: an update was cancelled; all state rolled back to the last good pass
//   - CACHE_CORRUPT: a persisted cache failed format or EOF-marker checks
//   - CONFIGURATION: a wiring defect (unknown cache, resolver, dependency type or node type)
//   - NOT_FOUND, INVALID_INPUT: query-side failures
//   - INTERNAL: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfiguration, "no handler for node type %q", typ)
//	if errors.Is(err, errors.ErrCodeConfiguration) {
//	    // Wiring defect, surface loudly
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeAborted, ctx.Err(), "update of %s cancelled", cacheID)
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidID    Code = "INVALID_ID"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeNodeNotFound Code = "NODE_NOT_FOUND"

	// Update lifecycle errors
	ErrCodeAborted      Code = "ABORTED"
	ErrCodeCacheCorrupt Code = "CACHE_CORRUPT"
	ErrCodeUpdateDenied Code = "UPDATE_DENIED"

	// Wiring errors
	ErrCodeConfiguration Code = "CONFIGURATION"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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

// Aborted wraps a cancellation cause into an ABORTED error.
// A nil cause yields context.Canceled so callers can still match on it.
func Aborted(cause error, format string, args ...any) *Error {
	if cause == nil {
		cause = context.Canceled
	}
	return Wrap(ErrCodeAborted, cause, format, args...)
}

// IsAborted reports whether err is an abort signal: either an ABORTED error or a
// bare context cancellation/deadline.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrCodeAborted) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
