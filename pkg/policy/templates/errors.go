package templates

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownTemplate is returned when a binding names a template the catalog does not have.
	ErrUnknownTemplate = errors.New("unknown policy template")

	// ErrDenied is the cause of failures raised by the deny template.
	ErrDenied = errors.New("denied by policy")

	// ErrRateLimited is the cause of failures raised by the rate-limit template.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrConcurrencyLimited is the cause of failures raised by the concurrency-limit template.
	ErrConcurrencyLimited = errors.New("concurrency limit exceeded")
)

// RejectedError is raised by templates that stop an event.
type RejectedError struct {
	// PolicyID is the rejecting policy.
	PolicyID string

	// Reason is a human-readable explanation.
	Reason string

	// RetryAfter suggests when a retry may succeed. Zero when unknown.
	RetryAfter time.Duration

	// Cause is one of ErrDenied, ErrRateLimited or ErrConcurrencyLimited.
	Cause error
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("policy %q rejected event: %s (retry after %s)", e.PolicyID, e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("policy %q rejected event: %s", e.PolicyID, e.Reason)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *RejectedError) Unwrap() error {
	return e.Cause
}

// ParameterError reports an invalid template parameter.
type ParameterError struct {
	Template  string
	Parameter string
	Message   string
}

// Error implements the error interface.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("template %q: parameter %q: %s", e.Template, e.Parameter, e.Message)
}
