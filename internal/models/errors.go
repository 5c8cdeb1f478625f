package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means "no prior knowledge" (no prototype / pattern / cache
	// entry). Benign for callers, never retried.
	ErrNotFound = errors.New("not found")

	// ErrProviderUnavailable is transient: the provider is skipped and put
	// into backoff. Not surfaced unless every provider is exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrDimensionMismatch indicates a stored and an incoming vector disagree
	// on length. This is a configuration error; fail fast, never truncate.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrPersistenceUnavailable means the backing store could not be used.
	// Components log it and continue memory-only; it is never fatal.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// AllProvidersFailedError is terminal for a single request: zero providers
// produced any result. It carries the last underlying provider error.
type AllProvidersFailedError struct {
	Attempted int
	LastErr   error
}

func (e *AllProvidersFailedError) Error() string {
	if e.LastErr == nil {
		return fmt.Sprintf("all %d providers failed", e.Attempted)
	}
	return fmt.Sprintf("all %d providers failed: last error: %v", e.Attempted, e.LastErr)
}

func (e *AllProvidersFailedError) Unwrap() error { return e.LastErr }

// DimensionError wraps ErrDimensionMismatch with the offending sizes.
func DimensionError(want, got int) error {
	return fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, want, got)
}
