// Package llm converts raw invoice text into structured invoices through
// an ordered chain of AI providers with a deterministic fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider is one structured-extraction backend. Implementations return
// the raw JSON document they produced; parsing and validation happen in
// the chain so a malformed response is handled exactly like a provider
// failure.
type Provider interface {
	Name() string
	Extract(ctx context.Context, text string) ([]byte, error)
}

// FailureKind classifies provider errors for the retry policy.
type FailureKind int

const (
	// FailureTransient covers rate limits, timeouts and 5xx responses.
	// Worth retrying with backoff.
	FailureTransient FailureKind = iota
	// FailurePermanent covers auth errors, bad requests and anything
	// else retrying will not fix.
	FailurePermanent
)

// ProviderError wraps a provider failure with its retry classification.
type ProviderError struct {
	Kind FailureKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (k FailureKind) String() string {
	if k == FailureTransient {
		return "transient"
	}
	return "permanent"
}

// NewTransientError marks err as retryable.
func NewTransientError(err error) error {
	return &ProviderError{Kind: FailureTransient, Err: err}
}

// NewPermanentError marks err as not worth retrying.
func NewPermanentError(err error) error {
	return &ProviderError{Kind: FailurePermanent, Err: err}
}

// Transient reports whether err should be retried. Unclassified errors
// are treated as transient so flaky transports get their retries.
func Transient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == FailureTransient
	}
	return true
}
