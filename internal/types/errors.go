package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for threatforge errors.
type ErrorCode string

// Job error codes
const (
	JOB_NOT_FOUND      ErrorCode = "JOB_NOT_FOUND"
	JOB_ALREADY_ACTIVE ErrorCode = "JOB_ALREADY_ACTIVE"
	JOB_CANCELLED      ErrorCode = "JOB_CANCELLED"
	JOB_FAILED         ErrorCode = "JOB_FAILED"
	JOB_POLL_TIMEOUT   ErrorCode = "JOB_POLL_TIMEOUT"
)

// Validation error codes
const (
	VALIDATION_FAILED     ErrorCode = "VALIDATION_FAILED"
	SUBMISSION_INVALID    ErrorCode = "SUBMISSION_INVALID"
	THREAT_TARGET_UNKNOWN ErrorCode = "THREAT_TARGET_UNKNOWN"
	THREAT_SOURCE_UNKNOWN ErrorCode = "THREAT_SOURCE_UNKNOWN"
)

// Store error codes
const (
	STORE_OPEN_FAILED  ErrorCode = "STORE_OPEN_FAILED"
	STORE_QUERY_FAILED ErrorCode = "STORE_QUERY_FAILED"
	STORE_WRITE_FAILED ErrorCode = "STORE_WRITE_FAILED"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Internal error codes
const (
	INTERNAL_ERROR ErrorCode = "INTERNAL_ERROR"
)

// ForgeError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type ForgeError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *ForgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a ForgeError with the same Code.
func (e *ForgeError) Is(target error) bool {
	var forgeErr *ForgeError
	if errors.As(target, &forgeErr) {
		return e.Code == forgeErr.Code
	}
	return false
}

// NewError creates a new non-retryable ForgeError with the given code and message.
func NewError(code ErrorCode, message string) *ForgeError {
	return &ForgeError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable ForgeError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *ForgeError {
	return &ForgeError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable ForgeError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *ForgeError {
	return &ForgeError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// CodeOf extracts the ErrorCode from an error chain.
// Returns INTERNAL_ERROR when the chain carries no ForgeError.
func CodeOf(err error) ErrorCode {
	var forgeErr *ForgeError
	if errors.As(err, &forgeErr) {
		return forgeErr.Code
	}
	return INTERNAL_ERROR
}

// IsCancellation reports whether the error chain represents a cancelled job.
// Cancellation is a distinct terminal outcome, not a generic failure.
func IsCancellation(err error) bool {
	return CodeOf(err) == JOB_CANCELLED
}
