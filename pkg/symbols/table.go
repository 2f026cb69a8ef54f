package symbols

import (
	"fmt"
	"sync"
)

// Symbol is a single interned name and its id.
type Symbol struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// Table interns strings to small stable integer ids.
// Id 0 is reserved for "no symbol"; the first interned name gets id 1.
type Table struct {
	mu     sync.RWMutex
	byName map[string]uint32
	byID   []string // index = id, byID[0] is unused
}

// NewTable creates an empty symbol table.
func NewTable() *Table {
	return &Table{
		byName: make(map[string]uint32),
		byID:   make([]string, 1, 256),
	}
}

// Intern returns the id for name, assigning a new one on first use.
// Repeated calls with the same name always return the same id.
func (t *Table) Intern(name string) uint32 {
	// Fast path: read-only lookup
	t.mu.RLock()
	if id, ok := t.byName[name]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := t.byName[name]; ok {
		return id
	}

	id := uint32(len(t.byID))
	t.byName[name] = id
	t.byID = append(t.byID, name)
	return id
}

// Lookup returns the id for name without interning it.
func (t *Table) Lookup(name string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[name]
	return id, ok
}

// Name returns the name for id, or "" if the id is unknown.
func (t *Table) Name(id uint32) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id == 0 || int(id) >= len(t.byID) {
		return ""
	}
	return t.byID[id]
}

// Len returns the number of interned symbols.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID) - 1
}

// Snapshot returns all symbols in id order.
func (t *Table) Snapshot() []Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Symbol, 0, len(t.byID)-1)
	for id := 1; id < len(t.byID); id++ {
		out = append(out, Symbol{ID: uint32(id), Name: t.byID[id]})
	}
	return out
}

// Load restores previously persisted symbols. Entries that agree with the
// table are skipped; an entry whose id or name is already bound differently
// is an error and leaves the table unchanged.
func (t *Table) Load(syms []Symbol) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range syms {
		if s.ID == 0 {
			return fmt.Errorf("symbol %q: id 0 is reserved", s.Name)
		}
		if id, ok := t.byName[s.Name]; ok && id != s.ID {
			return fmt.Errorf("symbol %q already bound to id %d, not %d", s.Name, id, s.ID)
		}
		if int(s.ID) < len(t.byID) && t.byID[s.ID] != "" && t.byID[s.ID] != s.Name {
			return fmt.Errorf("symbol id %d already bound to %q, not %q", s.ID, t.byID[s.ID], s.Name)
		}
	}

	for _, s := range syms {
		for int(s.ID) >= len(t.byID) {
			t.byID = append(t.byID, "")
		}
		t.byID[s.ID] = s.Name
		t.byName[s.Name] = s.ID
	}
	return nil
}
