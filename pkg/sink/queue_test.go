package sink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/calltrace/pkg/symbols"
	"mercator-hq/calltrace/pkg/tracebuf"
)

// submitBytes writes data into a fresh buffer and flushes it to out.
func submitBytes(t *testing.T, pool *tracebuf.Pool, out tracebuf.Output, data []byte) {
	t.Helper()
	buf := tracebuf.NewBuffer(pool, out)
	p, _, err := buf.Reserve(len(data))
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	copy(p, data)
	if n := buf.Flush(); n != 1 {
		t.Fatalf("Flush() = %d, want 1", n)
	}
	buf.Close()
}

// blockingStore blocks every Save until release is closed.
type blockingStore struct {
	*MemoryStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) Save(ctx context.Context, t *Trace) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.MemoryStore.Save(ctx, t)
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Save(context.Context, *Trace) error {
	return NewStoreError("test", "save", errors.New("disk full"))
}

type countingObserver struct {
	enqueued, dropped, stored, failed atomic.Int64
}

func (o *countingObserver) Enqueued(int) { o.enqueued.Add(1) }
func (o *countingObserver) Dropped(int)  { o.dropped.Add(1) }
func (o *countingObserver) Stored(_ time.Duration, _ int, err error) {
	if err != nil {
		o.failed.Add(1)
		return
	}
	o.stored.Add(1)
}

func TestQueueSink_WritesAndDrains(t *testing.T) {
	store := NewMemoryStore()
	pool := tracebuf.NewPool(&tracebuf.PoolConfig{ChunkSize: 64, MaxFree: 4})
	syms := symbols.NewTable()
	syms.Intern("main")
	obs := &countingObserver{}

	q := NewQueueSink(store, nil, WithSymbols(syms), WithObserver(obs))
	for i := 0; i < 10; i++ {
		submitBytes(t, pool, q.For("session-1"), []byte{byte(i), 1, 2})
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ctx := context.Background()
	if n, _ := store.Count(ctx); n != 10 {
		t.Fatalf("stored %d traces, want 10", n)
	}
	traces, _ := store.List(ctx, &Query{Session: "session-1"})
	if len(traces) != 10 {
		t.Errorf("List(session-1) = %d traces", len(traces))
	}
	for _, tr := range traces {
		if tr.ID == "" || tr.Size != 3 || tr.Chunks != 1 {
			t.Errorf("trace = %+v", tr)
		}
	}
	if got, _ := store.Symbols(ctx); len(got) != 1 || got[0].Name != "main" {
		t.Errorf("Symbols() = %v", got)
	}
	if live := pool.Stats().Live; live != 0 {
		t.Errorf("pool has %d live chunks after close", live)
	}
	if st := q.Stats(); st.Written != 10 || st.Dropped != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if obs.enqueued.Load() != 10 || obs.stored.Load() != 10 {
		t.Errorf("observer enqueued=%d stored=%d", obs.enqueued.Load(), obs.stored.Load())
	}

	if err := q.Close(); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("second Close() error = %v, want ErrQueueClosed", err)
	}
}

func TestQueueSink_BufferReusesPendingSlice(t *testing.T) {
	store := &blockingStore{
		MemoryStore: NewMemoryStore(),
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	pool := tracebuf.NewPool(&tracebuf.PoolConfig{ChunkSize: 16, MaxFree: 8})
	q := NewQueueSink(store, &QueueConfig{QueueSize: 4, WriteTimeout: time.Second})

	buf := tracebuf.NewBuffer(pool, q.For("s"))
	fill := func(c byte) {
		for i := 0; i < 3; i++ {
			p, _, err := buf.Reserve(10)
			if err != nil {
				t.Fatalf("Reserve() error = %v", err)
			}
			for j := range p {
				p[j] = c
			}
		}
		if n := buf.Flush(); n != 3 {
			t.Fatalf("Flush() = %d, want 3", n)
		}
	}

	fill('a')
	<-store.started
	// The writer holds the first trace; the next two flushes reuse the
	// buffer's pending slice while their submissions wait in the queue.
	fill('b')
	fill('c')
	close(store.release)
	buf.Close()

	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if st := q.Stats(); st.Written != 3 || st.Dropped != 0 || st.Failed != 0 {
		t.Fatalf("Stats() = %+v, want 3 written", st)
	}

	traces, err := store.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := map[string]bool{}
	for _, c := range "abc" {
		want[strings.Repeat(string(c), 30)] = true
	}
	for _, tr := range traces {
		if tr.Chunks != 3 || tr.Size != 30 || !want[string(tr.Data)] {
			t.Errorf("trace chunks=%d size=%d data=%q", tr.Chunks, tr.Size, tr.Data)
		}
		delete(want, string(tr.Data))
	}
	if len(want) != 0 {
		t.Errorf("missing traces: %v", want)
	}
	if live := pool.Stats().Live; live != 0 {
		t.Errorf("pool has %d live chunks after close", live)
	}
}

func TestQueueSink_DropsWhenFull(t *testing.T) {
	store := &blockingStore{
		MemoryStore: NewMemoryStore(),
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	pool := tracebuf.NewPool(nil)
	obs := &countingObserver{}
	q := NewQueueSink(store, &QueueConfig{QueueSize: 1, WriteTimeout: time.Second}, WithObserver(obs))

	submitBytes(t, pool, q, []byte{1})
	<-store.started // first submission is being written
	submitBytes(t, pool, q, []byte{2})
	submitBytes(t, pool, q, []byte{3}) // queue full

	if st := q.Stats(); st.Dropped != 1 || st.Depth != 1 {
		t.Errorf("Stats() = %+v, want 1 dropped and 1 queued", st)
	}
	if obs.dropped.Load() != 1 {
		t.Errorf("observer dropped = %d", obs.dropped.Load())
	}

	close(store.release)
	q.Close()

	if n, _ := store.Count(context.Background()); n != 2 {
		t.Errorf("stored %d traces, want 2", n)
	}
	if live := pool.Stats().Live; live != 0 {
		t.Errorf("pool has %d live chunks", live)
	}
}

func TestQueueSink_SubmitAfterClose(t *testing.T) {
	pool := tracebuf.NewPool(nil)
	q := NewQueueSink(NewMemoryStore(), nil)
	q.Close()

	submitBytes(t, pool, q, []byte{1})
	if st := q.Stats(); st.Dropped != 1 {
		t.Errorf("Stats() = %+v, want 1 dropped", st)
	}
	if live := pool.Stats().Live; live != 0 {
		t.Errorf("pool has %d live chunks", live)
	}
}

func TestQueueSink_StoreFailure(t *testing.T) {
	pool := tracebuf.NewPool(nil)
	obs := &countingObserver{}
	q := NewQueueSink(failingStore{NewMemoryStore()}, nil, WithObserver(obs))

	submitBytes(t, pool, q, []byte{1})
	q.Close()

	if st := q.Stats(); st.Failed != 1 || st.Written != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if obs.failed.Load() != 1 {
		t.Errorf("observer failed = %d", obs.failed.Load())
	}
}

func TestMemorySink(t *testing.T) {
	pool := tracebuf.NewPool(nil)
	m := NewMemorySink()
	submitBytes(t, pool, m, []byte{1, 2, 3})

	if m.Len() != 1 || string(m.Submissions()[0]) != "\x01\x02\x03" {
		t.Errorf("Submissions() = %x", m.Submissions())
	}
	if live := pool.Stats().Live; live != 0 {
		t.Errorf("pool has %d live chunks", live)
	}
}
