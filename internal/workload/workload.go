package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"mercator-hq/calltrace/pkg/recorder"
	"mercator-hq/calltrace/pkg/symbols"
)

// ErrInjected is the root cause of every error the generator raises.
var ErrInjected = errors.New("workload: injected failure")

// Config contains configuration for a call-tree generator.
type Config struct {
	// Seed makes the generated trees reproducible.
	// Default: 1
	Seed uint64

	// Methods is the number of distinct method names.
	// Default: 32
	Methods int

	// MaxDepth bounds the depth of a tree, the root included.
	// Default: 6
	MaxDepth int

	// MaxFanOut bounds the number of children of a call.
	// Default: 4
	MaxFanOut int

	// ErrorRate is the probability of a leaf ending with an error.
	// Default: 0.02
	ErrorRate float64

	// PropagateRate is the probability of a caller rethrowing the error of
	// one of its children.
	// Default: 0.5
	PropagateRate float64

	// AttributeRate is the probability of a call carrying an attribute.
	// Default: 0.05
	AttributeRate float64

	// LeafWork is the upper bound of the time spent in a leaf call. 0 means
	// leaves return immediately.
	LeafWork time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Seed:          1,
		Methods:       32,
		MaxDepth:      6,
		MaxFanOut:     4,
		ErrorRate:     0.02,
		PropagateRate: 0.5,
		AttributeRate: 0.05,
	}
}

// Stats counts what a generator produced.
type Stats struct {
	Trees      uint64
	Calls      uint64
	Errors     uint64
	Attributes uint64
}

// lastTraceID hands out trace ids unique within the process.
var lastTraceID atomic.Uint32

// nextTraceID returns a fresh nonzero trace id.
func nextTraceID() uint32 {
	for {
		if id := lastTraceID.Add(1); id != 0 {
			return id
		}
	}
}

// Generator drives one recorder with random call trees. Like the recorder
// it drives, a Generator belongs to one goroutine.
type Generator struct {
	cfg     Config
	rng     *rand.Rand
	methods []uint32
	attrs   []uint32
	user    uint32
	sleep   func(time.Duration)
	stats   Stats
}

// New creates a generator whose method and attribute names are interned in
// syms.
func New(cfg *Config, syms *symbols.Table) *Generator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.Methods <= 0 {
		c.Methods = 32
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 1
	}
	if c.MaxFanOut < 0 {
		c.MaxFanOut = 0
	}

	g := &Generator{
		cfg:   c,
		rng:   rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15)),
		sleep: time.Sleep,
	}
	for i := range c.Methods {
		g.methods = append(g.methods, syms.Intern(fmt.Sprintf("workload.Service%d.op%02d", i%4, i)))
	}
	for _, name := range []string{"attempt", "key", "cached"} {
		g.attrs = append(g.attrs, syms.Intern(name))
	}
	g.user = syms.Intern("user")
	return g
}

// Stats returns what the generator produced so far.
func (g *Generator) Stats() Stats {
	return g.stats
}

// Tree records one call tree on rec and returns the trace id of its root.
func (g *Generator) Tree(rec *recorder.Recorder) uint32 {
	traceID := nextTraceID()

	rec.Enter(g.pick())
	rec.BeginTrace(traceID, 0, 0)
	rec.SetAttribute(traceID, g.user, fmt.Sprintf("user-%d", g.rng.IntN(1000)))
	g.stats.Attributes++

	x := g.children(rec, 1)
	g.end(rec, x)
	g.stats.Trees++
	return traceID
}

// Run records trees until ctx is done or n trees were recorded (n <= 0
// means no limit). It stops early if rec fails.
func (g *Generator) Run(ctx context.Context, rec *recorder.Recorder, n int) error {
	for i := 0; n <= 0 || i < n; i++ {
		if ctx.Err() != nil {
			return nil
		}
		g.Tree(rec)
		if err := rec.Err(); err != nil {
			return err
		}
	}
	return nil
}

// call records one call at depth and returns the exception it ended with.
func (g *Generator) call(rec *recorder.Recorder, depth int) *recorder.Exception {
	rec.Enter(g.pick())
	if g.rng.Float64() < g.cfg.AttributeRate {
		g.attribute(rec)
	}
	x := g.children(rec, depth+1)
	g.end(rec, x)
	return x
}

// children records the callees of the innermost call. It returns the
// exception that call should end with, if any.
func (g *Generator) children(rec *recorder.Recorder, depth int) *recorder.Exception {
	n := 0
	if depth < g.cfg.MaxDepth && g.cfg.MaxFanOut > 0 {
		n = g.rng.IntN(g.cfg.MaxFanOut + 1)
	}
	if n == 0 {
		return g.leaf()
	}

	var rethrow *recorder.Exception
	for range n {
		if x := g.call(rec, depth); x != nil && rethrow == nil && g.rng.Float64() < g.cfg.PropagateRate {
			rethrow = x
		}
	}
	return rethrow
}

func (g *Generator) leaf() *recorder.Exception {
	if w := g.cfg.LeafWork; w > 0 {
		g.sleep(time.Duration(g.rng.Int64N(int64(w) + 1)))
	}
	if g.rng.Float64() >= g.cfg.ErrorRate {
		return nil
	}
	op := g.rng.IntN(len(g.methods))
	return recorder.FromError(fmt.Errorf("op%02d: %w", op, ErrInjected))
}

// end closes the innermost call, with x if it is not nil.
func (g *Generator) end(rec *recorder.Recorder, x *recorder.Exception) {
	g.stats.Calls++
	if x == nil {
		rec.Return()
		return
	}
	g.stats.Errors++
	rec.Error(x)
}

func (g *Generator) attribute(rec *recorder.Recorder) {
	i := g.rng.IntN(len(g.attrs))
	var v any
	switch i {
	case 0:
		v = g.rng.IntN(5)
	case 1:
		v = fmt.Sprintf("k%04x", g.rng.Uint32()&0xffff)
	default:
		v = g.rng.IntN(2) == 0
	}
	rec.SetAttribute(0, g.attrs[i], v)
	g.stats.Attributes++
}

func (g *Generator) pick() uint32 {
	return g.methods[g.rng.IntN(len(g.methods))]
}
