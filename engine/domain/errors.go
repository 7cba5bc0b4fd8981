package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine error taxonomy.
var (
	// ErrInvalidCoordinate marks bad geodata. Batch jobs skip and report it.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrNotFound marks a missing outlet reference.
	ErrNotFound = errors.New("outlet not found")
	// ErrDimensionMismatch marks a query/index vector dimensionality conflict.
	// It is a configuration bug and must never be papered over by truncation.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmbeddingService marks an external embedding service failure. Retryable.
	ErrEmbeddingService = errors.New("embedding service failure")
	// ErrSynthesisTimeout marks an answer-synthesis call that exceeded its
	// deadline. Retryable.
	ErrSynthesisTimeout = errors.New("answer synthesis timed out")
	// ErrRebuildInProgress marks a batch job rejected because another job of
	// the same type holds the lock.
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	// ErrInvalidOutlet marks a scraped record rejected at the validation gate.
	ErrInvalidOutlet = errors.New("invalid outlet record")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ItemFailure records a single per-item failure inside a batch job.
type ItemFailure struct {
	OutletID string `json:"outlet_id"`
	Reason   string `json:"reason"`
}

// Report accumulates the outcome of a batch job. Per-item failures never
// abort the batch; only a failure to publish is fatal.
type Report struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// Fail records a per-item failure.
func (r *Report) Fail(outletID string, err error) {
	r.Failures = append(r.Failures, ItemFailure{OutletID: outletID, Reason: err.Error()})
}

// Skip records a skipped item.
func (r *Report) Skip() { r.Skipped++ }
