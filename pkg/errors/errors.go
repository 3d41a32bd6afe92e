package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeTransport   ErrorType = "transport"
	ErrorTypeHTTPStatus  ErrorType = "http_status"
	ErrorTypeMalformed   ErrorType = "malformed"
	ErrorTypeQuota       ErrorType = "quota"
	ErrorTypeCacheIO     ErrorType = "cache_io"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API or storage error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
	// RetryAfter is the pause the server asked for, if it named one
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without an underlying cause
func New(errorType ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errorType,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// Wrap creates a typed error around an underlying cause
func Wrap(errorType ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errorType,
		Message: fmt.Sprintf("%s: %v", fmt.Sprintf(format, args...), err),
		Err:     err,
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown if err is not typed
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given ErrorType anywhere in its chain
func Is(err error, errorType ErrorType) bool {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type == errorType
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Code
	}
	return 0
}

// RetryAfter returns the pause the server asked for before the next attempt,
// or 0 if err carries no such hint
func RetryAfter(err error) time.Duration {
	var typed *Error
	if stderrors.As(err, &typed) && typed.RetryAfter > 0 {
		return typed.RetryAfter
	}
	return 0
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransport, ErrorTypeQuota, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeMalformed, ErrorTypeCacheIO:
		return false
	default:
		return false
	}
}

// IsRetryableError checks a typed error, taking the status code into account
// for http_status errors
func IsRetryableError(err error) bool {
	var typed *Error
	if !stderrors.As(err, &typed) {
		return false
	}
	if typed.Type == ErrorTypeHTTPStatus {
		return IsRetryableStatusCode(typed.Code)
	}
	return IsRetryable(typed.Type)
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	case 400, 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
