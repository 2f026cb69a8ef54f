package tracebuf

import "sync/atomic"

// Chunk is a contiguous region of a trace stream. Offset is the absolute
// position of the chunk's first byte within its trace; several chunks in
// offset order make up one submission.
type Chunk struct {
	buf      []byte
	n        int
	off      int64
	pool     *Pool
	released atomic.Bool
}

// Bytes returns the written part of the chunk.
func (c *Chunk) Bytes() []byte {
	return c.buf[:c.n]
}

// Len returns the number of written bytes.
func (c *Chunk) Len() int {
	return c.n
}

// Offset returns the absolute offset of the chunk within its trace stream.
func (c *Chunk) Offset() int64 {
	return c.off
}

// Release returns the chunk to its pool. The chunk must not be used
// afterwards. Releasing twice is a no-op.
func (c *Chunk) Release() {
	if c.released.Swap(true) {
		return
	}
	if c.pool != nil {
		c.pool.put(c)
	}
}

// reuse marks a recycled chunk as live again.
func (c *Chunk) reuse() *Chunk {
	c.released.Store(false)
	return c
}

// Output receives finalized chunks from a Buffer.
//
// Submit takes ownership of every chunk in the slice and must Release each of
// them once done. It must not retain the slice itself and must not block the
// recording context indefinitely: backpressure is the output's problem.
type Output interface {
	Submit(chunks []*Chunk)
}

// OutputFunc adapts a function to the Output interface.
type OutputFunc func(chunks []*Chunk)

// Submit calls f(chunks).
func (f OutputFunc) Submit(chunks []*Chunk) {
	f(chunks)
}

// Discard is an Output that releases everything it receives.
var Discard Output = OutputFunc(func(chunks []*Chunk) {
	for _, c := range chunks {
		c.Release()
	}
})

// Concat copies the written bytes of chunks into a single slice.
func Concat(chunks []*Chunk) []byte {
	size := 0
	for _, c := range chunks {
		size += c.n
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c.Bytes()...)
	}
	return out
}
