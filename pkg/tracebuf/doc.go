// Package tracebuf provides the chunked byte storage that trace recorders
// write into.
//
// # Chunks and offsets
//
// A Buffer writes into fixed-size chunks drawn from a shared Pool. Every byte
// has an absolute offset within the current trace stream. When a record does
// not fit the remaining space of the current chunk, the chunk is finalized
// (moved to the pending list) and a new one is installed before any byte of
// the record is written, so records never straddle two chunks.
//
// Three offsets describe the buffer state:
//
//   - Pos: the write cursor
//   - Base: start of the current chunk; Rewind may only go back to here
//   - Flushed: everything before it has been handed to the Output
//
// # Lifecycle
//
//	pool := tracebuf.NewPool(nil)
//	buf := tracebuf.NewBuffer(pool, out)
//
//	p, off, err := buf.Reserve(12) // fill p[0:12]
//	...
//	buf.Rewind(off)  // discard a record that turned out uninteresting
//	buf.Flush()      // submit pending chunks to out
//	buf.Drop()       // or discard everything not yet flushed
//
// The Output takes ownership of submitted chunks and releases them back to
// the pool when it is done with them.
//
// # Thread Safety
//
// A Buffer has exactly one writer and no internal locking. The Pool is shared
// and safe for concurrent use, because outputs release chunks from their own
// goroutines.
package tracebuf
