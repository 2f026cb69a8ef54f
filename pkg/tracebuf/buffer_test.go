package tracebuf

import (
	"bytes"
	"errors"
	"testing"
)

// captureOutput records submitted chunk contents and releases the chunks.
type captureOutput struct {
	submissions [][]byte
	chunks      []int
}

func (o *captureOutput) Submit(chunks []*Chunk) {
	o.submissions = append(o.submissions, Concat(chunks))
	o.chunks = append(o.chunks, len(chunks))
	for _, c := range chunks {
		c.Release()
	}
}

func fill(t *testing.T, b *Buffer, n int, v byte) int64 {
	t.Helper()
	p, off, err := b.Reserve(n)
	if err != nil {
		t.Fatalf("Reserve(%d) error = %v", n, err)
	}
	if len(p) != n {
		t.Fatalf("Reserve(%d) returned %d bytes", n, len(p))
	}
	for i := range p {
		p[i] = v
	}
	return off
}

func TestBuffer_ReserveAdvancesCursor(t *testing.T) {
	b := NewBuffer(NewPool(&PoolConfig{ChunkSize: 64, MaxFree: 4}), nil)

	if off := fill(t, b, 10, 1); off != 0 {
		t.Errorf("first offset = %d, want 0", off)
	}
	if off := fill(t, b, 5, 2); off != 10 {
		t.Errorf("second offset = %d, want 10", off)
	}
	if b.Pos() != 15 {
		t.Errorf("Pos() = %d, want 15", b.Pos())
	}
	if b.Base() != 0 {
		t.Errorf("Base() = %d, want 0", b.Base())
	}
}

func TestBuffer_RolloverNeverSplitsRecord(t *testing.T) {
	out := &captureOutput{}
	b := NewBuffer(NewPool(&PoolConfig{ChunkSize: 16, MaxFree: 4}), out)

	fill(t, b, 12, 'a')
	off := fill(t, b, 8, 'b') // does not fit the remaining 4 bytes
	if off != 12 {
		t.Errorf("offset after rollover = %d, want 12", off)
	}
	if b.Base() != 12 {
		t.Errorf("Base() = %d, want 12", b.Base())
	}
	if b.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", b.Pending())
	}

	if n := b.Flush(); n != 2 {
		t.Errorf("Flush() = %d chunks, want 2", n)
	}
	want := append(bytes.Repeat([]byte{'a'}, 12), bytes.Repeat([]byte{'b'}, 8)...)
	if len(out.submissions) != 1 || !bytes.Equal(out.submissions[0], want) {
		t.Errorf("submission = %q, want %q", out.submissions, want)
	}
}

func TestBuffer_OversizeReservation(t *testing.T) {
	out := &captureOutput{}
	b := NewBuffer(NewPool(&PoolConfig{ChunkSize: 16}), out)

	fill(t, b, 4, 'x')
	off := fill(t, b, 100, 'y')
	if off != 4 {
		t.Errorf("oversize offset = %d, want 4", off)
	}
	b.Flush()
	if len(out.submissions[0]) != 104 {
		t.Errorf("submitted %d bytes, want 104", len(out.submissions[0]))
	}
}

func TestBuffer_Rewind(t *testing.T) {
	b := NewBuffer(NewPool(&PoolConfig{ChunkSize: 16}), nil)

	fill(t, b, 4, 1)
	mark := fill(t, b, 4, 2)
	fill(t, b, 4, 3)

	if err := b.Rewind(mark); err != nil {
		t.Fatalf("Rewind(%d) error = %v", mark, err)
	}
	if b.Pos() != mark {
		t.Errorf("Pos() after rewind = %d, want %d", b.Pos(), mark)
	}
	if err := b.Rewind(b.Pos() + 1); !errors.Is(err, ErrRewindBoundary) {
		t.Errorf("Rewind past cursor error = %v, want ErrRewindBoundary", err)
	}

	// Roll over, then try to rewind into the finalized chunk.
	fill(t, b, 13, 4)
	if b.Base() != mark {
		t.Fatalf("Base() = %d, want %d", b.Base(), mark)
	}
	if err := b.Rewind(mark - 1); !errors.Is(err, ErrRewindBoundary) {
		t.Errorf("Rewind into finalized chunk error = %v, want ErrRewindBoundary", err)
	}
}

func TestBuffer_DropDiscardsUnflushed(t *testing.T) {
	pool := NewPool(&PoolConfig{ChunkSize: 16, MaxFree: 8})
	out := &captureOutput{}
	b := NewBuffer(pool, out)

	fill(t, b, 12, 1)
	fill(t, b, 12, 2)
	fill(t, b, 12, 3)

	if got := b.Drop(); got != 36 {
		t.Errorf("Drop() = %d, want 36", got)
	}
	if b.Pos() != 0 || b.Base() != 0 || b.Flushed() != 0 {
		t.Errorf("offsets after Drop = (%d, %d, %d), want zeros", b.Pos(), b.Base(), b.Flushed())
	}
	if len(out.submissions) != 0 {
		t.Errorf("Drop submitted %d times", len(out.submissions))
	}
	if b.Flush() != 0 {
		t.Error("Flush after Drop submitted data")
	}
	// Only the current chunk is still live.
	if live := pool.Stats().Live; live != 1 {
		t.Errorf("live chunks after Drop = %d, want 1", live)
	}
}

func TestBuffer_FlushThenWrite(t *testing.T) {
	out := &captureOutput{}
	b := NewBuffer(NewPool(&PoolConfig{ChunkSize: 32}), out)

	fill(t, b, 8, 'a')
	b.Flush()
	if b.Flushed() != 8 || b.Base() != 8 {
		t.Errorf("after flush Flushed=%d Base=%d, want 8 and 8", b.Flushed(), b.Base())
	}

	off := fill(t, b, 4, 'b')
	if off != 8 {
		t.Errorf("offset after flush = %d, want 8", off)
	}
	if b.Unflushed() != 4 {
		t.Errorf("Unflushed() = %d, want 4", b.Unflushed())
	}
	b.Flush()
	if len(out.submissions) != 2 || string(out.submissions[1]) != "bbbb" {
		t.Errorf("second submission = %q", out.submissions)
	}
}

func TestBuffer_ReserveFailureLeavesStateIntact(t *testing.T) {
	pool := NewPool(&PoolConfig{ChunkSize: 16, MaxChunks: 1})
	b := NewBuffer(pool, nil)

	fill(t, b, 12, 1)
	pos := b.Pos()

	if _, _, err := b.Reserve(8); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Reserve error = %v, want ErrPoolExhausted", err)
	}
	if b.Pos() != pos || b.Pending() != 0 {
		t.Errorf("failed Reserve changed state: Pos=%d Pending=%d", b.Pos(), b.Pending())
	}
	// The remaining space is still usable.
	fill(t, b, 4, 2)
}

func TestBuffer_ResetIsCheap(t *testing.T) {
	pool := NewPool(&PoolConfig{ChunkSize: 64})
	b := NewBuffer(pool, nil)

	fill(t, b, 10, 1)
	b.Reset()
	if b.Pos() != 0 {
		t.Errorf("Pos() after Reset = %d", b.Pos())
	}
	if got := pool.Stats().Allocated; got != 1 {
		t.Errorf("Reset reallocated: %d chunks allocated", got)
	}

	allocs := testing.AllocsPerRun(100, func() {
		p, _, _ := b.Reserve(12)
		p[0] = 1
		b.Reset()
	})
	if allocs != 0 {
		t.Errorf("Reserve+Reset allocated %.1f times per run", allocs)
	}
}

func TestPool_RecyclesChunks(t *testing.T) {
	pool := NewPool(&PoolConfig{ChunkSize: 32, MaxFree: 2})

	c, err := pool.Get(8)
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	c.Release()
	c.Release() // double release is a no-op

	again, _ := pool.Get(8)
	if again != c {
		t.Error("released chunk was not reused")
	}
	if s := pool.Stats(); s.Allocated != 1 || s.Live != 1 {
		t.Errorf("stats = %+v, want 1 allocated, 1 live", s)
	}

	big, _ := pool.Get(100)
	big.Release()
	if s := pool.Stats(); s.Free != 0 {
		t.Errorf("oversize chunk kept on free list: %+v", s)
	}
}
