package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a specific error type for better error handling
type ErrorCode string

const (
	// Selection errors
	ErrCodeConfiguration  ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeProbeFailed    ErrorCode = "PROBE_FAILED"
	ErrCodeNoConnection   ErrorCode = "NO_CONNECTION_AVAILABLE"
	ErrCodeCancelled      ErrorCode = "CANCELLED"
	ErrCodeQueryFailed    ErrorCode = "QUERY_FAILED"
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// Request processing errors
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// RouterError represents a structured error with context
type RouterError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *RouterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Code, e.Component, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *RouterError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error code
func (e *RouterError) Is(target error) bool {
	if t, ok := target.(*RouterError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithMetadata adds metadata to the error
func (e *RouterError) WithMetadata(key string, value interface{}) *RouterError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsRetryable returns true if the caller may retry the whole request later
func (e *RouterError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeNoConnection, ErrCodeProbeFailed:
		return true
	default:
		return false
	}
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *RouterError) HTTPStatusCode() int {
	switch e.Code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeAuthenticationFailed:
		return http.StatusUnauthorized
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is comparisons by code
var (
	ErrConfiguration = &RouterError{Code: ErrCodeConfiguration}
	ErrProbeFailed   = &RouterError{Code: ErrCodeProbeFailed}
	ErrNoConnection  = &RouterError{Code: ErrCodeNoConnection}
	ErrCancelled     = &RouterError{Code: ErrCodeCancelled}
	ErrInvalid       = &RouterError{Code: ErrCodeInvalidRequest}
)

// NewError creates a new RouterError
func NewError(code ErrorCode, component, message string) *RouterError {
	return &RouterError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WrapError wraps an existing error with RouterError structure
func WrapError(err error, code ErrorCode, component, message string) *RouterError {
	if err == nil {
		return nil
	}

	return &RouterError{
		Code:      code,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
		Details:   err.Error(),
	}
}

// NewConfigurationError reports a replica list that could not be loaded
func NewConfigurationError(cause error) *RouterError {
	return WrapError(cause, ErrCodeConfiguration, "registry", "replica configuration could not be loaded")
}

// NewProbeError reports a single replica that failed its liveness probe.
// target must already be free of credentials.
func NewProbeError(target string, cause error) *RouterError {
	return WrapError(cause, ErrCodeProbeFailed, "probe", "replica probe failed").
		WithMetadata("target", target)
}

// NewNoConnectionError reports that every configured replica was tried and failed
func NewNoConnectionError(attempts int) *RouterError {
	return NewError(ErrCodeNoConnection, "selector", "available database connection not found").
		WithMetadata("attempts", attempts)
}

// NewCancelledError reports a selection abandoned because its context ended
func NewCancelledError(cause error) *RouterError {
	if cause == nil {
		cause = context.Canceled
	}
	return WrapError(cause, ErrCodeCancelled, "selector", "selection cancelled")
}

// NewInvalidRequestError reports a request that failed validation
func NewInvalidRequestError(message string) *RouterError {
	return NewError(ErrCodeInvalidRequest, "validation", message)
}

// IsRouterError checks if an error is a RouterError
func IsRouterError(err error) bool {
	var rErr *RouterError
	return errors.As(err, &rErr)
}

// AsRouterError returns the first RouterError in err's chain
func AsRouterError(err error) (*RouterError, bool) {
	var rErr *RouterError
	if errors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var rErr *RouterError
	if errors.As(err, &rErr) {
		return rErr.Code
	}
	return ErrCodeInternalError
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var rErr *RouterError
	if errors.As(err, &rErr) {
		return rErr.IsRetryable()
	}
	return false
}

// GetHTTPStatusCode gets the appropriate HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	var rErr *RouterError
	if errors.As(err, &rErr) {
		return rErr.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
