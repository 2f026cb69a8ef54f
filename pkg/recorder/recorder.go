package recorder

import (
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"mercator-hq/calltrace/pkg/symbols"
	"mercator-hq/calltrace/pkg/tracebuf"
	"mercator-hq/calltrace/pkg/traceformat"
)

// Recorder turns enter/return/error events of one execution context into a
// binary trace stream.
//
// A Recorder is owned by exactly one goroutine and has no internal locking.
// Only Enable and Disable may be called from elsewhere. Independent call
// paths use independent recorders sharing a symbol table, a chunk pool and
// an output.
type Recorder struct {
	cfg    Config
	policy Policy

	clock Clock
	buf   *tracebuf.Buffer
	enc   *traceformat.Encoder
	exc   exceptionSerializer
	stack stack

	enabled atomic.Bool
	busy    bool // set while an event is being processed
	closed  bool
	err     error

	tunables *Tunables
	applied  *Thresholds

	observer Observer
	logger   *slog.Logger
	session  string

	stats Stats
	trace TraceSummary
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	clock    Clock
	observer Observer
	logger   *slog.Logger
	tunables *Tunables
	pool     *tracebuf.Pool
	session  string
}

// WithClock sets the tick source. The default is a monotonic clock using
// Config.TickShift.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithObserver sets the trace boundary observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTunables attaches shared runtime thresholds.
func WithTunables(t *Tunables) Option {
	return func(o *options) { o.tunables = t }
}

// WithPool sets the chunk pool. Recorders of one process usually share a
// pool.
func WithPool(p *tracebuf.Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithSession sets the session id. The default is a random UUID.
func WithSession(id string) Option {
	return func(o *options) { o.session = id }
}

// New creates an enabled recorder writing to out. Names are interned in
// syms; a nil syms gets a private table.
func New(cfg *Config, out tracebuf.Output, syms *symbols.Table, opts ...Option) *Recorder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = NewClock(cfg.TickShift)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	session := o.session
	if session == "" {
		session = uuid.NewString()
	}
	buf := tracebuf.NewBuffer(o.pool, out)
	enc := traceformat.NewEncoder(buf, syms)

	r := &Recorder{
		cfg:      *cfg,
		policy:   Policy{MinMethodTicks: cfg.MinMethodTicks, MinTraceTicks: cfg.MinTraceTicks},
		clock:    o.clock,
		buf:      buf,
		enc:      enc,
		exc:      exceptionSerializer{enc: enc},
		stack:    newStack(cfg.InitialStackDepth),
		tunables: o.tunables,
		observer: o.observer,
		logger:   o.logger.With("component", "recorder", "session", session),
		session:  session,
	}
	r.enabled.Store(true)
	r.applyTunables()
	return r
}

// accept reports whether an event may be processed. Events arriving while
// another one is in progress are counted as lost.
func (r *Recorder) accept() bool {
	if !r.enabled.Load() || r.err != nil || r.closed {
		return false
	}
	if r.busy {
		r.trace.LostEvents++
		return false
	}
	return true
}

// Enter records the start of a call to methodID.
func (r *Recorder) Enter(methodID uint32) {
	if !r.accept() {
		return
	}
	r.busy = true

	if r.stack.depth == 0 {
		r.idle()
	}
	if r.stack.full() {
		if err := r.stack.grow(r.cfg.MaxStackDepth); err != nil {
			r.fail("enter", err)
			r.busy = false
			return
		}
		r.stats.StackGrowths++
		if r.observer != nil {
			r.observer.StackGrown(len(r.stack.frames))
		}
	}

	tick := r.clock.Ticks()
	off, err := r.enc.TraceHeader(methodID, tick)
	if err != nil {
		r.fail("enter", err)
		r.busy = false
		return
	}
	r.stack.push(frame{start: tick, offset: off})

	r.busy = false
}

// Return records the end of the innermost active call. It is a no-op when
// no call is active.
func (r *Recorder) Return() {
	if r.stack.depth == 0 || !r.accept() {
		return
	}
	r.busy = true
	r.complete()
	r.busy = false
}

// Error records that the innermost active call ended with t. The call is
// always kept. A nil t behaves like Return.
func (r *Recorder) Error(t Throwable) {
	if r.stack.depth == 0 || !r.accept() {
		return
	}
	r.busy = true

	if t != nil {
		ref, err := r.exc.process(t)
		if err != nil {
			r.fail("error", err)
			r.busy = false
			return
		}
		if ref {
			r.stats.ExceptionRefs++
		} else {
			r.stats.Exceptions++
		}
		r.stack.top().flags |= FlagError | FlagSubmitMethod
	}
	r.complete()

	r.busy = false
}

// complete pops the innermost frame and applies the filter policy.
func (r *Recorder) complete() {
	f := r.stack.pop()
	duration := r.clock.Ticks() - f.start
	if duration < 0 {
		duration = 0
	}

	if r.policy.Keep(duration, f.flags, f.offset, r.buf.Base()) {
		if err := r.enc.MethodFooter(duration, f.calls); err != nil {
			r.fail("return", err)
			return
		}
		r.trace.CallsKept++
	} else {
		// Keep holds every call whose header lies before the current
		// chunk, so the rewind stays within it.
		if err := r.buf.Rewind(f.offset); err != nil {
			r.fail("return", err)
			return
		}
		r.trace.CallsDiscarded++
	}

	if f.traceID != 0 && r.policy.Flush(duration, f.flags) {
		r.flush()
	}

	if parent := r.stack.top(); parent != nil {
		parent.calls += f.calls + 1
		parent.flags |= f.flags & FlagSubmitMethod
		return
	}
	r.endTrace()
}

func (r *Recorder) flush() {
	before := r.buf.Flushed()
	chunks := r.buf.Flush()
	if chunks == 0 {
		return
	}
	r.trace.Flushes++
	r.trace.ChunksFlushed += chunks
	r.trace.BytesFlushed += r.buf.Flushed() - before
}

// endTrace runs when the stack becomes empty: everything not flushed is
// discarded and the period is reported.
func (r *Recorder) endTrace() {
	if r.buf.Base() == 0 {
		r.trace.BytesDropped += r.buf.Unflushed()
		r.buf.Reset()
	} else {
		r.trace.BytesDropped += r.buf.Drop()
	}
	r.finishPeriod()
}

func (r *Recorder) finishPeriod() {
	r.stats.add(r.trace)
	if r.observer != nil {
		r.observer.TraceFinished(r.trace)
	}
	r.trace = TraceSummary{}
}

// idle prepares an empty recorder for the next trace.
func (r *Recorder) idle() {
	r.applyTunables()
	if r.buf.Base() == 0 && r.buf.Pos() != 0 {
		r.buf.Reset()
	}
}

func (r *Recorder) applyTunables() {
	if r.tunables == nil {
		return
	}
	t := r.tunables.current()
	if t == nil || t == r.applied {
		return
	}
	r.applied = t
	if t.MinMethodTicks != r.policy.MinMethodTicks || t.MinTraceTicks != r.policy.MinTraceTicks {
		r.logger.Info("thresholds updated",
			"min_method_ticks", t.MinMethodTicks,
			"min_trace_ticks", t.MinTraceTicks)
	}
	r.policy.MinMethodTicks = t.MinMethodTicks
	r.policy.MinTraceTicks = t.MinTraceTicks
}

// fail puts the recorder into the failed state.
func (r *Recorder) fail(op string, cause error) {
	r.err = &FailureError{Session: r.session, Operation: op, Cause: cause}
	r.logger.Error("recorder failed, dropping trace data",
		"operation", op,
		"depth", r.stack.depth,
		"error", cause)

	r.trace.BytesDropped += r.buf.Drop()
	r.stack.reset()
	r.finishPeriod()
	if r.observer != nil {
		r.observer.Failed(r.err)
	}
}

// BeginTrace marks the innermost active call as the root of trace traceID
// and records the wall-clock start. A zero clock is replaced by the
// recorder's wall clock. Only FlagSubmitMethod, FlagSubmitTrace and
// FlagSplit are taken from flags. It is a no-op when no call is active or
// traceID is 0.
func (r *Recorder) BeginTrace(traceID uint32, clock int64, flags Flags) {
	if r.stack.depth == 0 || traceID == 0 || !r.accept() {
		return
	}
	r.busy = true

	top := r.stack.top()
	top.traceID = traceID
	top.flags |= flags & traceFlags
	if clock == 0 {
		clock = r.clock.Wall()
	}
	if err := r.enc.TraceBegin(clock, traceID); err != nil {
		r.fail("begin", err)
	}

	r.busy = false
}

// SetAttribute attaches attrID=value to the innermost active call and forces
// it to be kept. A nonzero traceID scopes the attribute to that trace.
func (r *Recorder) SetAttribute(traceID, attrID uint32, value any) {
	if r.stack.depth == 0 || !r.accept() {
		return
	}
	r.busy = true

	r.stack.top().flags |= FlagSubmitMethod
	if err := r.enc.Attribute(traceID, attrID, value); err != nil {
		r.fail("attribute", err)
	}

	r.busy = false
}

// GetAttr is not supported and always returns ErrNotImplemented.
func (r *Recorder) GetAttr(attrID uint32) (any, error) {
	return nil, ErrNotImplemented
}

// GetTraceAttr is not supported and always returns ErrNotImplemented.
func (r *Recorder) GetTraceAttr(traceID, attrID uint32) (any, error) {
	return nil, ErrNotImplemented
}

// MarkTraceFlags ORs flags into the innermost active root of traceID (any
// trace when traceID is 0). It reports whether such a root was found.
func (r *Recorder) MarkTraceFlags(traceID uint32, flags Flags) bool {
	if r.stack.depth == 0 || !r.accept() {
		return false
	}
	f := r.stack.findTrace(traceID)
	if f == nil {
		return false
	}
	f.flags |= flags & traceFlags
	return true
}

// InTrace reports whether an active call is the root of traceID (of any
// trace when traceID is 0).
func (r *Recorder) InTrace(traceID uint32) bool {
	return r.stack.findTrace(traceID) != nil
}

// Enable resumes event processing.
func (r *Recorder) Enable() {
	r.enabled.Store(true)
}

// Disable ignores all further events until Enable. Calls already active
// stay on the stack and are popped normally once events resume.
func (r *Recorder) Disable() {
	r.enabled.Store(false)
}

// Enabled reports whether events are processed.
func (r *Recorder) Enabled() bool {
	return r.enabled.Load()
}

// SetMinimumMethodTime sets the keep threshold for calls, in ticks.
func (r *Recorder) SetMinimumMethodTime(ticks int64) {
	r.policy.MinMethodTicks = ticks
}

// SetMinimumTraceTime sets the flush threshold for trace roots, in ticks.
func (r *Recorder) SetMinimumTraceTime(ticks int64) {
	r.policy.MinTraceTicks = ticks
}

// Policy returns the filter policy in effect.
func (r *Recorder) Policy() Policy {
	return r.policy
}

// Depth returns the number of active calls.
func (r *Recorder) Depth() int {
	return r.stack.depth
}

// Err returns the failure that stopped the recorder, if any.
func (r *Recorder) Err() error {
	return r.err
}

// Session returns the recorder's session id.
func (r *Recorder) Session() string {
	return r.session
}

// Stats returns cumulative counters, including the period in progress.
func (r *Recorder) Stats() Stats {
	s := r.stats
	s.add(r.trace)
	return s
}

// Close discards unflushed data and returns all chunks to the pool. It
// returns the failure that stopped the recorder, if any, or ErrClosed when
// called again.
func (r *Recorder) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true

	if d := r.stack.depth; d > 0 {
		r.logger.Warn("closing recorder with active calls", "depth", d)
	}
	r.trace.BytesDropped += r.buf.Unflushed()
	r.buf.Close()
	r.stats.add(r.trace)
	r.trace = TraceSummary{}

	return r.err
}
