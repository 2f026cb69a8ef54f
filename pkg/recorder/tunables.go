package recorder

import "sync/atomic"

// Thresholds are the filter settings that can change at runtime.
type Thresholds struct {
	MinMethodTicks int64
	MinTraceTicks  int64
}

// Tunables publishes Thresholds to any number of recorders. Each recorder
// picks up a new value the next time its stack is empty, so a trace is
// always filtered with one consistent set of thresholds.
type Tunables struct {
	p atomic.Pointer[Thresholds]
}

// NewTunables creates Tunables holding t.
func NewTunables(t Thresholds) *Tunables {
	tu := &Tunables{}
	tu.Store(t)
	return tu
}

// Store publishes new thresholds.
func (tu *Tunables) Store(t Thresholds) {
	tu.p.Store(&t)
}

// Load returns the current thresholds.
func (tu *Tunables) Load() Thresholds {
	return *tu.p.Load()
}

func (tu *Tunables) current() *Thresholds {
	return tu.p.Load()
}
