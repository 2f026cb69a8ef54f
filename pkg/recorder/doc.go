// Package recorder implements the in-process call-trace recorder.
//
// Instrumented code reports the calls of one execution context to a
// Recorder:
//
//	r := recorder.New(recorder.DefaultConfig(), output, syms)
//	defer r.Close()
//
//	r.Enter(methodID)
//	r.BeginTrace(traceID, 0, 0) // optional: make this call a trace root
//	r.SetAttribute(0, attrID, "value")
//	...
//	r.Return() // or r.Error(recorder.FromError(err))
//
// Each Enter writes a method header into a chunked tracebuf.Buffer and
// pushes a frame on the shadow stack. On Return the Policy decides whether
// the call is kept (a footer is written) or discarded (the buffer is rewound
// to the header). Calls shorter than MinMethodTicks disappear unless an
// attribute or error marked them, or their header already sits in a
// finalized chunk.
//
// When a trace root completes with at least MinTraceTicks, or was marked
// with FlagSubmitTrace, the buffered chunks go to the output. Whatever is
// still unflushed when the stack becomes empty is dropped.
//
// # Failure
//
// Exceeding MaxStackDepth, running out of chunks, or an encoding error puts
// the recorder into a failed state. It logs the failure once, drops its
// unflushed data and ignores all further events. Err and Close report the
// FailureError.
//
// # Concurrency
//
// A Recorder belongs to one goroutine. Enable and Disable are the only
// methods safe to call from elsewhere. Events that arrive while another
// event is being processed on the same recorder (for example from an
// attribute's CBOR marshaler) are ignored and counted as lost.
package recorder
