// Package errors provides structured error types for the dashboard service.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout      = errors.New("operation timed out")
	ErrRateLimit    = errors.New("rate limit exceeded")
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")
	ErrUnavailable  = errors.New("service unavailable")
)

// Re-exports so callers don't need a second errors import.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// PlatformError represents an error from an external platform call
// (orchestration API, metrics backend, notification service).
type PlatformError struct {
	Platform   string
	StatusCode int
	Message    string
	Err        error
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d): %s: %v", e.Platform, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Platform, e.StatusCode, e.Message)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// NewPlatformError creates a new platform error wrapping err, which may be nil.
func NewPlatformError(platform string, statusCode int, message string, err error) *PlatformError {
	return &PlatformError{Platform: platform, StatusCode: statusCode, Message: message, Err: err}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		switch platformErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
