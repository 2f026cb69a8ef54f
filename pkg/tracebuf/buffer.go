package tracebuf

import (
	"errors"
	"fmt"
)

// ErrRewindBoundary is returned when a rewind target lies before the start of
// the current chunk (already finalized) or past the cursor.
var ErrRewindBoundary = errors.New("tracebuf: rewind past chunk boundary")

// Buffer is a growable, chunked byte buffer with a single writer.
//
// Offsets are absolute positions within the current trace stream. Bytes
// before Base() live in finalized chunks and can no longer be rewound; bytes
// before Flushed() have already been handed to the Output.
type Buffer struct {
	pool *Pool
	out  Output

	cur  *Chunk
	pos  int   // write index within cur
	base int64 // absolute offset of cur's first byte

	flushed int64
	pending []*Chunk

	stats BufferStats
}

// BufferStats counts buffer activity since creation.
type BufferStats struct {
	// Rollovers is the number of chunks finalized because the current one was full.
	Rollovers int64
	// Flushes is the number of Submit calls made to the output.
	Flushes int64
	// ChunksFlushed is the number of chunks handed to the output.
	ChunksFlushed int64
	// BytesFlushed is the number of bytes handed to the output.
	BytesFlushed int64
	// BytesDropped is the number of unflushed bytes discarded by Drop.
	BytesDropped int64
}

// NewBuffer creates a buffer drawing chunks from pool and flushing to out.
func NewBuffer(pool *Pool, out Output) *Buffer {
	if pool == nil {
		pool = NewPool(nil)
	}
	if out == nil {
		out = Discard
	}
	return &Buffer{
		pool:    pool,
		out:     out,
		pending: make([]*Chunk, 0, 8),
	}
}

// Reserve guarantees n contiguous bytes in the current chunk, rolling over
// to a new chunk first when the current one cannot hold them. It returns the
// n-byte window to fill and the absolute offset of its first byte.
//
// The cursor only moves once the capacity is secured: on error the buffer is
// left exactly as it was.
func (b *Buffer) Reserve(n int) ([]byte, int64, error) {
	if n <= 0 {
		return nil, b.Pos(), fmt.Errorf("tracebuf: invalid reservation size %d", n)
	}
	if b.cur == nil || len(b.cur.buf)-b.pos < n {
		if err := b.rollover(n); err != nil {
			return nil, 0, err
		}
	}
	off := b.base + int64(b.pos)
	p := b.cur.buf[b.pos : b.pos+n : b.pos+n]
	b.pos += n
	return p, off, nil
}

// rollover finalizes the current chunk and installs a fresh one with room
// for at least n bytes.
func (b *Buffer) rollover(n int) error {
	next, err := b.pool.Get(n)
	if err != nil {
		return err
	}
	if b.cur != nil {
		if b.pos > 0 {
			b.seal()
			b.stats.Rollovers++
		} else {
			b.cur.Release()
		}
	}
	b.cur = next
	b.pos = 0
	return nil
}

// seal moves the current chunk onto the pending list.
func (b *Buffer) seal() {
	b.cur.n = b.pos
	b.cur.off = b.base
	b.pending = append(b.pending, b.cur)
	b.base += int64(b.pos)
	b.cur = nil
	b.pos = 0
}

// Pos returns the absolute write cursor.
func (b *Buffer) Pos() int64 {
	return b.base + int64(b.pos)
}

// Base returns the absolute offset of the current chunk. Nothing before it
// can be rewound.
func (b *Buffer) Base() int64 {
	return b.base
}

// Flushed returns the absolute offset up to which data has been submitted.
func (b *Buffer) Flushed() int64 {
	return b.flushed
}

// Unflushed returns the number of bytes written but not yet submitted.
func (b *Buffer) Unflushed() int64 {
	return b.Pos() - b.flushed
}

// Pending returns the number of finalized chunks awaiting flush.
func (b *Buffer) Pending() int {
	return len(b.pending)
}

// Rewind moves the cursor back to off, discarding everything after it.
// Only offsets within the current chunk are legal.
func (b *Buffer) Rewind(off int64) error {
	if off < b.base || off > b.Pos() {
		return ErrRewindBoundary
	}
	b.pos = int(off - b.base)
	return nil
}

// Flush hands all finalized chunks and the written part of the current chunk
// to the output, in offset order. It returns the number of chunks submitted.
func (b *Buffer) Flush() int {
	if b.cur != nil && b.pos > 0 {
		b.seal()
	}
	n := len(b.pending)
	if n == 0 {
		return 0
	}

	b.stats.Flushes++
	b.stats.ChunksFlushed += int64(n)
	b.stats.BytesFlushed += b.base - b.flushed

	b.out.Submit(b.pending)
	clear(b.pending)
	b.pending = b.pending[:0]
	b.flushed = b.base
	return n
}

// Drop discards everything not yet flushed and resets all offsets to zero,
// ready for the next trace. It returns the number of bytes discarded.
func (b *Buffer) Drop() int64 {
	discarded := b.Unflushed()
	for _, c := range b.pending {
		c.Release()
	}
	clear(b.pending)
	b.pending = b.pending[:0]
	b.pos = 0
	b.base = 0
	b.flushed = 0
	b.stats.BytesDropped += discarded
	return discarded
}

// Reset moves the cursor back to zero. It is the cheap path for a buffer
// that never rolled over or flushed; otherwise it behaves like Drop.
func (b *Buffer) Reset() {
	if b.base != 0 || b.flushed != 0 || len(b.pending) > 0 {
		b.Drop()
		return
	}
	b.stats.BytesDropped += int64(b.pos)
	b.pos = 0
}

// Stats returns a snapshot of buffer activity.
func (b *Buffer) Stats() BufferStats {
	return b.stats
}

// Close drops unflushed data and returns every chunk to the pool.
func (b *Buffer) Close() {
	b.Drop()
	if b.cur != nil {
		b.cur.Release()
		b.cur = nil
	}
}
