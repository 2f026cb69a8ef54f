package sink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/calltrace/pkg/symbols"
	"mercator-hq/calltrace/pkg/tracebuf"
)

// QueueConfig contains configuration for the queue sink.
type QueueConfig struct {
	// QueueSize is the number of submissions that can wait for the writer.
	// Default: 1000
	QueueSize int

	// WriteTimeout is the timeout for writing one trace to the store.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultQueueConfig returns the default queue sink configuration.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		QueueSize:    1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Observer receives queue sink events. Implementations must be safe for
// concurrent use.
type Observer interface {
	// Enqueued is called after a submission was queued, with the new depth.
	Enqueued(depth int)

	// Dropped is called when a submission is discarded because the queue
	// is full or closed.
	Dropped(chunks int)

	// Stored is called after each store write.
	Stored(duration time.Duration, size int, err error)
}

type nopObserver struct{}

func (nopObserver) Enqueued(int) {}
func (nopObserver) Dropped(int) {}
func (nopObserver) Stored(time.Duration, int, error) {}

// QueueOption configures a QueueSink.
type QueueOption func(*QueueSink)

// WithObserver sets the queue event observer.
func WithObserver(o Observer) QueueOption {
	return func(q *QueueSink) {
		if o != nil {
			q.observer = o
		}
	}
}

// WithSymbols makes the writer persist new symbols of table before each
// trace, so that stored traces can always be rendered.
func WithSymbols(table *symbols.Table) QueueOption {
	return func(q *QueueSink) {
		q.syms = table
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *QueueSink) {
		if l != nil {
			q.logger = l
		}
	}
}

type submission struct {
	session string
	chunks  []*tracebuf.Chunk
	at      time.Time
}

// QueueSink is a tracebuf.Output that hands submissions to a background
// writer. Submit never blocks: when the queue is full the submission is
// released and counted as dropped.
type QueueSink struct {
	store    Store
	config   *QueueConfig
	observer Observer
	syms     *symbols.Table
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan submission
	done   chan struct{}
	wg     sync.WaitGroup

	savedSyms int
	dropped   atomic.Int64
	written   atomic.Int64
	failed    atomic.Int64
}

// NewQueueSink creates a queue sink writing to store and starts its writer.
func NewQueueSink(store Store, config *QueueConfig, opts ...QueueOption) *QueueSink {
	if config == nil {
		config = DefaultQueueConfig()
	}
	cfg := *config
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueConfig().QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultQueueConfig().WriteTimeout
	}

	q := &QueueSink{
		store:    store,
		config:   &cfg,
		observer: nopObserver{},
		logger:   slog.Default().With("component", "sink.queue"),
		queue:    make(chan submission, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.wg.Add(1)
	go q.worker()

	q.logger.Info("queue sink initialized",
		"queue_size", cfg.QueueSize,
		"write_timeout", cfg.WriteTimeout,
	)
	return q
}

// Submit queues chunks without a session.
func (q *QueueSink) Submit(chunks []*tracebuf.Chunk) {
	q.submit("", chunks)
}

// For returns an Output that tags its submissions with session.
func (q *QueueSink) For(session string) tracebuf.Output {
	return tracebuf.OutputFunc(func(chunks []*tracebuf.Chunk) {
		q.submit(session, chunks)
	})
}

func (q *QueueSink) submit(session string, chunks []*tracebuf.Chunk) {
	if len(chunks) == 0 {
		return
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.closed {
		// The caller reuses its slice once Submit returns.
		owned := append([]*tracebuf.Chunk(nil), chunks...)
		select {
		case q.queue <- submission{session: session, chunks: owned, at: time.Now()}:
			q.observer.Enqueued(len(q.queue))
			return
		default:
		}
	}

	for _, c := range chunks {
		c.Release()
	}
	if q.dropped.Add(1) == 1 || q.closed {
		q.logger.Warn("dropping trace submission",
			"session", session,
			"chunks", len(chunks),
			"closed", q.closed,
			"queue_size", q.config.QueueSize,
		)
	}
	q.observer.Dropped(len(chunks))
}

// Depth returns the number of queued submissions.
func (q *QueueSink) Depth() int {
	return len(q.queue)
}

// QueueStats contains queue sink counters.
type QueueStats struct {
	Written int64 `json:"written"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
	Depth   int   `json:"depth"`
}

// Stats returns the sink counters.
func (q *QueueSink) Stats() QueueStats {
	return QueueStats{
		Written: q.written.Load(),
		Failed:  q.failed.Load(),
		Dropped: q.dropped.Load(),
		Depth:   len(q.queue),
	}
}

// Close stops accepting submissions, writes everything still queued and
// waits for the writer to finish. It does not close the store.
func (q *QueueSink) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()

	q.logger.Info("queue sink shut down",
		"written", q.written.Load(),
		"failed", q.failed.Load(),
		"dropped", q.dropped.Load(),
	)
	return nil
}

func (q *QueueSink) worker() {
	defer q.wg.Done()

	for {
		select {
		case s := <-q.queue:
			q.write(s)

		case <-q.done:
			q.logger.Debug("draining queue before shutdown", "pending_count", len(q.queue))
			for {
				select {
				case s := <-q.queue:
					q.write(s)
				default:
					return
				}
			}
		}
	}
}

func (q *QueueSink) write(s submission) {
	data := tracebuf.Concat(s.chunks)
	for _, c := range s.chunks {
		c.Release()
	}

	t := &Trace{
		ID:         uuid.NewString(),
		Session:    s.session,
		RecordedAt: s.at,
		Chunks:     len(s.chunks),
		Size:       len(data),
		Data:       data,
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := q.persistSymbols(ctx)
	if err == nil {
		err = q.store.Save(ctx, t)
	}
	duration := time.Since(start)
	q.observer.Stored(duration, t.Size, err)

	if err != nil {
		q.failed.Add(1)
		q.logger.Error("failed to store trace",
			"trace_id", t.ID,
			"session", t.Session,
			"size", t.Size,
			"error", err,
		)
		return
	}
	q.written.Add(1)

	q.logger.Debug("trace stored",
		"trace_id", t.ID,
		"session", t.Session,
		"size", t.Size,
		"chunks", t.Chunks,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > q.config.WriteTimeout/2 {
		q.logger.Warn("slow trace write",
			"trace_id", t.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (q.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}

// persistSymbols saves the symbols interned since the last write. Only the
// writer goroutine touches savedSyms.
func (q *QueueSink) persistSymbols(ctx context.Context) error {
	if q.syms == nil {
		return nil
	}
	snap := q.syms.Snapshot()
	if len(snap) <= q.savedSyms {
		return nil
	}
	fresh := make([]symbols.Symbol, 0, len(snap)-q.savedSyms)
	for _, sym := range snap[q.savedSyms:] {
		if sym.Name != "" {
			fresh = append(fresh, sym)
		}
	}
	if err := q.store.SaveSymbols(ctx, fresh); err != nil {
		return err
	}
	q.savedSyms = len(snap)
	return nil
}
