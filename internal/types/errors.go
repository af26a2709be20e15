package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for graphweave errors.
type ErrorCode string

// Request validation error codes
const (
	VALIDATION_FAILED      ErrorCode = "VALIDATION_FAILED"
	REQUIRED_FIELD_MISSING ErrorCode = "REQUIRED_FIELD_MISSING"
)

// Store error codes
const (
	STORE_UNAVAILABLE  ErrorCode = "STORE_UNAVAILABLE"
	STORE_QUERY_FAILED ErrorCode = "STORE_QUERY_FAILED"
	NODE_NOT_FOUND     ErrorCode = "NODE_NOT_FOUND"
	CHUNK_NOT_FOUND    ErrorCode = "CHUNK_NOT_FOUND"
	RELATION_UNKNOWN   ErrorCode = "RELATION_UNKNOWN"
)

// Embedding error codes
const (
	EMBEDDING_FAILED       ErrorCode = "EMBEDDING_FAILED"
	EMBEDDING_TIMEOUT      ErrorCode = "EMBEDDING_TIMEOUT"
	EMBEDDING_CIRCUIT_OPEN ErrorCode = "EMBEDDING_CIRCUIT_OPEN"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// WeaveError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type WeaveError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *WeaveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *WeaveError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a WeaveError with the same Code.
func (e *WeaveError) Is(target error) bool {
	var weaveErr *WeaveError
	if errors.As(target, &weaveErr) {
		return e.Code == weaveErr.Code
	}
	return false
}

// NewError creates a new WeaveError with the given code and message.
func NewError(code ErrorCode, message string) *WeaveError {
	return &WeaveError{
		Code:    code,
		Message: message,
	}
}

// NewErrorf creates a new WeaveError with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *WeaveError {
	return &WeaveError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError creates a new WeaveError wrapping an underlying cause.
func WrapError(code ErrorCode, message string, cause error) *WeaveError {
	return &WeaveError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithRetryable marks the error as retryable or not.
// Returns the error for method chaining.
func (e *WeaveError) WithRetryable(retryable bool) *WeaveError {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err carries a retryable hint.
// Returns false for nil errors and non-WeaveError errors.
func IsRetryable(err error) bool {
	var weaveErr *WeaveError
	if errors.As(err, &weaveErr) {
		return weaveErr.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from an error chain.
// Returns an empty code if no WeaveError is found.
func CodeOf(err error) ErrorCode {
	var weaveErr *WeaveError
	if errors.As(err, &weaveErr) {
		return weaveErr.Code
	}
	return ""
}
