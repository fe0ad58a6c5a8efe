package fetcher

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoData is the cause of every empty-result error.
var ErrNoData = errors.New("no data")

// ErrorType represents the category of error that occurred during a fetch operation
type ErrorType string

const (
	// ErrorTypeNetwork indicates a network-level error (connection refused, DNS, etc.)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit indicates the request was rejected due to rate limiting (HTTP 429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer indicates a server error (HTTP 5xx)
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeClient indicates a client error (HTTP 4xx except 429)
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeTimeout indicates the request timed out
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeEmpty indicates the source answered with zero rows
	ErrorTypeEmpty ErrorType = "empty"
	// ErrorTypeParse indicates the payload did not have the expected shape
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypePersistence indicates the snapshot could not be written
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypePanic indicates the fetcher panicked
	ErrorTypePanic ErrorType = "panic"
	// ErrorTypeUnknown indicates an error of unknown type
	ErrorTypeUnknown ErrorType = "unknown"
)

// FetchError represents a structured error from a fetch operation
type FetchError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsTransport reports whether the error came from the transport layer
// rather than from the payload or the snapshot writer.
func (e *FetchError) IsTransport() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServer, ErrorTypeClient, ErrorTypeTimeout:
		return true
	}
	return false
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown if err is not a FetchError.
func TypeOf(err error) ErrorType {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}

// NewNetworkError creates a network error. Context deadline errors are
// reported as timeouts.
func NewNetworkError(message string, cause error) *FetchError {
	if errors.Is(cause, context.DeadlineExceeded) {
		return NewTimeoutError(message, cause)
	}
	return &FetchError{
		Type:    ErrorTypeNetwork,
		Message: message,
		Cause:   cause,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeRateLimit,
		StatusCode: statusCode,
		Message:    "rate limit exceeded",
	}
}

// NewServerError creates a server error
func NewServerError(statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeServer,
		StatusCode: statusCode,
		Message:    "server returned an error",
	}
}

// NewClientError creates a client error
func NewClientError(statusCode int, message string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeClient,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string, cause error) *FetchError {
	return &FetchError{
		Type:    ErrorTypeTimeout,
		Message: message,
		Cause:   cause,
	}
}

// NewEmptyError creates an empty-result error for the named source
func NewEmptyError(source string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeEmpty,
		Message: source,
		Cause:   ErrNoData,
	}
}

// NewParseError creates a parse error
func NewParseError(message string, cause error) *FetchError {
	return &FetchError{
		Type:    ErrorTypeParse,
		Message: message,
		Cause:   cause,
	}
}

// NewPersistenceError creates a snapshot write error
func NewPersistenceError(destination string, cause error) *FetchError {
	return &FetchError{
		Type:    ErrorTypePersistence,
		Message: fmt.Sprintf("write %s", destination),
		Cause:   cause,
	}
}

// NewPanicError wraps a value recovered from a panicking fetcher
func NewPanicError(source string, cause error) *FetchError {
	return &FetchError{
		Type:    ErrorTypePanic,
		Message: fmt.Sprintf("%s fetcher panicked", source),
		Cause:   cause,
	}
}

// ClassifyHTTPError classifies an HTTP status code into an appropriate FetchError
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == 429:
		return NewRateLimitError(statusCode)
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		return NewClientError(statusCode, fmt.Sprintf("client error: HTTP %d", statusCode))
	default:
		return &FetchError{
			Type:       ErrorTypeUnknown,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}
