package sink

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned when submitting to a closed queue sink.
	ErrQueueClosed = errors.New("sink: queue closed")

	// ErrNotFound is returned when a trace does not exist.
	ErrNotFound = errors.New("sink: trace not found")
)

// StoreError represents an error from a trace store backend.
type StoreError struct {
	Backend   string // Store backend ("sqlite", "memory")
	Operation string // Operation that failed ("save", "list", "delete", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
