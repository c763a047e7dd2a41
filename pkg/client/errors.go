package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the session.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry backoff wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassBadRequest represents 400 malformed-query errors.
	ErrorClassBadRequest ErrorClass = "bad_request"

	// ErrorClassAuth represents 401/403 authentication and permission errors.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassResource represents 404/409 missing or conflicting resources.
	ErrorClassResource ErrorClass = "resource"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassAPI represents any other non-2xx response.
	ErrorClassAPI ErrorClass = "api"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a typed failure from the Planet API, carrying the offending
// status code and any server-supplied message.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planet %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("planet %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-2xx HTTP status code to an error class.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == 400:
		return ErrorClassBadRequest
	case code == 401 || code == 403:
		return ErrorClassAuth
	case code == 404 || code == 409:
		return ErrorClassResource
	case code == 429:
		return ErrorClassRateLimit
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassAPI
	}
}

// shouldRetry determines if an error class is transient enough to retry.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassRateLimit, ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// retryable reports whether err carries a retryable error class.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shouldRetry(apiErr.Class)
	}
	return false
}
