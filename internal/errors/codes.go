package errors

import (
	"fmt"
)

// ErrorCode represents a specific failure class for calendar operations.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a referenced event does not exist for that user.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeUnsupportedCommand indicates the payload/action is outside the recognized vocabulary.
	ErrCodeUnsupportedCommand ErrorCode = "UNSUPPORTED_COMMAND"
	// ErrCodeInvalidArgument indicates a required field is missing or malformed for the action.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeAmbiguousMatch indicates text-match resolution found more than one candidate.
	// This is a soft condition surfaced as a clarification, not a hard failure.
	ErrCodeAmbiguousMatch ErrorCode = "AMBIGUOUS_MATCH"
	// ErrCodeAdapterUnavailable indicates the external interpretation
	// collaborator cannot be reached or is misconfigured.
	ErrCodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeServiceUnavailable indicates a dependency is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// CalendarError is a structured error for calendar operations.
type CalendarError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CalendarError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CalendarError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *CalendarError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(msg string) *CalendarError {
	return &CalendarError{Code: ErrCodeNotFound, Message: msg}
}

// UnsupportedCommand creates an unsupported command error.
func UnsupportedCommand(msg string) *CalendarError {
	return &CalendarError{Code: ErrCodeUnsupportedCommand, Message: msg}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *CalendarError {
	return &CalendarError{Code: ErrCodeInvalidArgument, Message: msg}
}

// AmbiguousMatch creates an ambiguous match error.
func AmbiguousMatch(msg string) *CalendarError {
	return &CalendarError{Code: ErrCodeAmbiguousMatch, Message: msg}
}

// AdapterUnavailable creates an adapter unavailable error.
func AdapterUnavailable(msg string, cause error) *CalendarError {
	return &CalendarError{Code: ErrCodeAdapterUnavailable, Message: msg, Cause: cause}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *CalendarError {
	return &CalendarError{Code: ErrCodeUnauthorized, Message: msg}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *CalendarError {
	return &CalendarError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if calErr, ok := err.(*CalendarError); ok {
		return calErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a CalendarError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if calErr, ok := err.(*CalendarError); ok {
		return calErr.Code
	}
	return defaultCode
}
