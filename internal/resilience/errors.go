package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sony/gobreaker/v2"
)

// TransientError marks a failure that may succeed on retry. Callers that
// know a failure is retryable (for example a refused connection reported by
// a subprocess) can wrap it so the executor retries it.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransient wraps err as a transient failure.
func NewTransient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// FatalError marks a failure that must not be retried, such as an
// authentication or validation error.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatal wraps err as a non-retryable failure.
func NewFatal(op string, err error) *FatalError {
	return &FatalError{Op: op, Err: err}
}

// ExhaustedError is returned when every permitted attempt failed with a
// transient error. It carries the number of attempts made and the last
// underlying failure.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// StatusError represents a failure reported with an HTTP-style status code
// by one of the upstream services. 5xx and 429 are transient, other 4xx are
// fatal.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// NewStatusError creates a StatusError for the given code.
func NewStatusError(code int, message string) *StatusError {
	return &StatusError{Code: code, Message: message}
}

// IsTransient reports whether err is classified as retryable.
//
// Connection errors, timeouts, 5xx/429 status codes, and an open circuit
// breaker are transient. Other status codes and any error this package does
// not recognize are fatal: retrying an unknown failure blindly risks
// repeating a non-idempotent operation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var fatal *FatalError
	if errors.As(err, &fatal) {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= 500 || status.Code == 429
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Retrying while the breaker is open is harmless: attempts fail fast
	// until the breaker half-opens.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}
