package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned by attribute reads, which recorders do
	// not support.
	ErrNotImplemented = errors.New("recorder: not implemented")

	// ErrStackOverflow is the failure cause when a call would exceed
	// MaxStackDepth.
	ErrStackOverflow = errors.New("recorder: maximum stack depth exceeded")

	// ErrClosed is returned by Close on an already closed recorder.
	ErrClosed = errors.New("recorder: closed")
)

// FailureError is recorded when a recorder hits a fatal condition. The
// recorder drops its unflushed data and ignores all further events.
type FailureError struct {
	Session   string // Recording session id
	Operation string // Event that failed ("enter", "return", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	return fmt.Sprintf("recorder failed [session=%s, operation=%s]: %v", e.Session, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *FailureError) Unwrap() error {
	return e.Cause
}
