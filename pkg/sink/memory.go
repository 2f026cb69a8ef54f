package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/calltrace/pkg/symbols"
	"mercator-hq/calltrace/pkg/tracebuf"
)

// MemorySink is an Output that keeps every submission in memory as one
// byte slice.
type MemorySink struct {
	mu          sync.Mutex
	submissions [][]byte
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Submit copies the chunks and releases them.
func (m *MemorySink) Submit(chunks []*tracebuf.Chunk) {
	data := tracebuf.Concat(chunks)
	for _, c := range chunks {
		c.Release()
	}
	m.mu.Lock()
	m.submissions = append(m.submissions, data)
	m.mu.Unlock()
}

// Submissions returns everything submitted so far.
func (m *MemorySink) Submissions() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.submissions))
	copy(out, m.submissions)
	return out
}

// Len returns the number of submissions.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

// MemoryStore is a Store backed by maps, for tests and short-lived runs.
type MemoryStore struct {
	mu      sync.RWMutex
	traces  map[string]*Trace
	symbols map[uint32]string
	closed  bool
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		traces:  make(map[string]*Trace),
		symbols: make(map[uint32]string),
	}
}

func (s *MemoryStore) check(op string) error {
	if s.closed {
		return NewStoreError("memory", op, fmt.Errorf("store closed"))
	}
	return nil
}

// Save stores a copy of t.
func (s *MemoryStore) Save(ctx context.Context, t *Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("save"); err != nil {
		return err
	}
	if _, exists := s.traces[t.ID]; exists {
		return NewStoreError("memory", "save", fmt.Errorf("duplicate trace id %q", t.ID))
	}
	cp := *t
	cp.Data = append([]byte(nil), t.Data...)
	s.traces[t.ID] = &cp
	return nil
}

// List returns copies of the matching traces.
func (s *MemoryStore) List(ctx context.Context, q *Query) ([]*Trace, error) {
	if q == nil {
		q = &Query{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("list"); err != nil {
		return nil, err
	}

	var matched []*Trace
	for _, t := range s.traces {
		if q.Session != "" && t.Session != q.Session {
			continue
		}
		if !q.Since.IsZero() && t.RecordedAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !t.RecordedAt.Before(q.Until) {
			continue
		}
		matched = append(matched, t)
	}
	sortTraces(matched, q.Newest)

	if q.Offset >= len(matched) {
		return []*Trace{}, nil
	}
	matched = matched[q.Offset:]
	if n := q.limit(); len(matched) > n {
		matched = matched[:n]
	}

	out := make([]*Trace, len(matched))
	for i, t := range matched {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

// Get returns a copy of the trace with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("get"); err != nil {
		return nil, err
	}
	t, ok := s.traces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Count returns the number of stored traces.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("count"); err != nil {
		return 0, err
	}
	return int64(len(s.traces)), nil
}

// DeleteBefore deletes traces recorded before cutoff.
func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("delete"); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range s.traces {
		if t.RecordedAt.Before(cutoff) {
			delete(s.traces, id)
			n++
		}
	}
	return n, nil
}

// DeleteOldest deletes the oldest traces so that at most keep remain.
func (s *MemoryStore) DeleteOldest(ctx context.Context, keep int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("delete"); err != nil {
		return 0, err
	}
	excess := int64(len(s.traces)) - keep
	if excess <= 0 {
		return 0, nil
	}

	all := make([]*Trace, 0, len(s.traces))
	for _, t := range s.traces {
		all = append(all, t)
	}
	sortTraces(all, false)
	for _, t := range all[:excess] {
		delete(s.traces, t.ID)
	}
	return excess, nil
}

// SaveSymbols stores symbols whose ids are not stored yet.
func (s *MemoryStore) SaveSymbols(ctx context.Context, syms []symbols.Symbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("save_symbols"); err != nil {
		return err
	}
	for _, sym := range syms {
		if _, ok := s.symbols[sym.ID]; !ok {
			s.symbols[sym.ID] = sym.Name
		}
	}
	return nil
}

// Symbols returns all stored symbols in id order.
func (s *MemoryStore) Symbols(ctx context.Context) ([]symbols.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("symbols"); err != nil {
		return nil, err
	}
	out := make([]symbols.Symbol, 0, len(s.symbols))
	for id, name := range s.symbols {
		out = append(out, symbols.Symbol{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// sortTraces orders traces by record time, breaking ties by id.
func sortTraces(ts []*Trace, newest bool) {
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if newest {
			a, b = b, a
		}
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.Before(b.RecordedAt)
		}
		return a.ID < b.ID
	})
}
