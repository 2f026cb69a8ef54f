// Package sink moves flushed trace chunks out of the recording goroutine and
// into durable storage.
//
// A QueueSink is the tracebuf.Output handed to recorders. Its Submit never
// blocks: submissions go onto a bounded queue and a single writer
// concatenates them into a Trace and saves it to a Store. A full queue drops
// the submission.
//
// Stores:
//   - MemoryStore keeps everything in maps
//   - SQLiteStore persists to a database file using either the pure Go
//     driver ("sqlite") or the cgo driver ("sqlite3")
//
// Stores also keep the symbol table so that stored traces can be rendered
// by a process other than the one that recorded them.
package sink
