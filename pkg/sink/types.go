package sink

import (
	"context"
	"time"

	"mercator-hq/calltrace/pkg/symbols"
)

// Trace is one submission of a recorder: the concatenated chunks handed over
// by a single flush.
type Trace struct {
	ID         string    `json:"id"`
	Session    string    `json:"session,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	Chunks     int       `json:"chunks"`
	Size       int       `json:"size"`
	Data       []byte    `json:"-"`
}

// Query selects stored traces. Zero fields do not filter.
type Query struct {
	Session string
	Since   time.Time
	Until   time.Time

	// Limit caps the number of results.
	// Default: 100
	Limit  int
	Offset int

	// Newest sorts by descending record time instead of ascending.
	Newest bool
}

// DefaultQueryLimit is the result cap applied when Query.Limit is 0.
const DefaultQueryLimit = 100

func (q *Query) limit() int {
	if q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

// Store persists traces and the symbol table needed to read them.
type Store interface {
	// Save stores a trace. The trace ID must be unique.
	Save(ctx context.Context, t *Trace) error

	// List returns the traces matching q, including their data.
	List(ctx context.Context, q *Query) ([]*Trace, error)

	// Get returns a single trace, or ErrNotFound.
	Get(ctx context.Context, id string) (*Trace, error)

	// Count returns the number of stored traces.
	Count(ctx context.Context) (int64, error)

	// DeleteBefore deletes traces recorded before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteOldest deletes the oldest traces so that at most keep remain.
	DeleteOldest(ctx context.Context, keep int64) (int64, error)

	// SaveSymbols stores symbols. Ids that are already stored are kept.
	SaveSymbols(ctx context.Context, syms []symbols.Symbol) error

	// Symbols returns all stored symbols in id order.
	Symbols(ctx context.Context) ([]symbols.Symbol, error)

	// Close releases the store's resources.
	Close() error
}
