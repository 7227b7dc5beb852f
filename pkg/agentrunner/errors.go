package agentrunner

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies an AgentRunner failure for metrics and retry
// decisions.
type ErrorKind int8

const (
	// ErrorValidation marks LLM output that failed normalization/schema
	// validation after retry. Not retried by AgentRunner itself.
	ErrorValidation ErrorKind = iota
	// ErrorRateLimit marks a provider-side rate-limit response (429, quota
	// exceeded). The only kind AgentRunner retries on its own.
	ErrorRateLimit
	// ErrorProvider5xx marks a provider server error.
	ErrorProvider5xx
	// ErrorNetwork marks a transport failure: timeout, connection reset, EOF.
	ErrorNetwork
	// ErrorUnknown is the default for unclassified failures.
	ErrorUnknown
)

// String renders the kind the way it appears in metrics labels and events.
func (k ErrorKind) String() string {
	switch k {
	case ErrorValidation:
		return "ValidationError"
	case ErrorRateLimit:
		return "RateLimit"
	case ErrorProvider5xx:
		return "Provider5xx"
	case ErrorNetwork:
		return "Network"
	default:
		return "Unknown"
	}
}

// MaxRetryAttempts bounds the exponential backoff retry loop AgentRunner
// runs for RateLimit failures.
const MaxRetryAttempts = 3

// RetryConfig is the exponential backoff schedule for retryable failures.
type RetryConfig struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig is used for ErrorRateLimit; no other kind is retried.
var DefaultRetryConfig = RetryConfig{
	InitialDelay:  time.Second,
	MaxDelay:      30 * time.Second,
	BackoffFactor: 2.0,
}

// Delay returns the backoff delay before retry attempt n (1-based).
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.BackoffFactor)
		if d > c.MaxDelay {
			return c.MaxDelay
		}
	}
	return d
}

// Error is a classified AgentRunner failure.
type Error struct {
	Kind    ErrorKind
	AgentID string
	Phase   string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agentrunner: agent %s phase %s: %s: %v", e.AgentID, e.Phase, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether AgentRunner's own retry loop should handle
// this failure. Only RateLimit is retried here; Provider5xx/Network are
// left for the caller's own LLMClient-level retry policy if any, and
// Validation/Unknown are never retried.
func (e *Error) IsRetryable() bool {
	return e.Kind == ErrorRateLimit
}

// classify maps the unclassified error an LLMClient or the normalizer
// produced onto one of the five documented ErrorKinds.
func classify(err error) ErrorKind {
	var existing *Error
	if errors.As(err, &existing) {
		return existing.Kind
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return ErrorValidation
	}

	var classified ClassifiableError
	if errors.As(err, &classified) {
		return classified.ErrorKind()
	}

	return ErrorUnknown
}

// ClassifiableError lets an LLMClient adapter report its own kind (e.g. a
// provider SDK that already distinguishes 429 from 5xx from timeout)
// without AgentRunner needing to know about provider-specific error types.
type ClassifiableError interface {
	error
	ErrorKind() ErrorKind
}

// ValidationError marks LLM output that failed OutputNormalizer validation.
type ValidationError struct {
	FieldPath string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.FieldPath == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: field %q: %v", e.FieldPath, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
