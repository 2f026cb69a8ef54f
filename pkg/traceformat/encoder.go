package traceformat

import (
	"fmt"

	"mercator-hq/calltrace/pkg/symbols"
	"mercator-hq/calltrace/pkg/tracebuf"
)

// Encoder writes trace records into a Buffer. Each record is reserved at its
// exact size before any byte is written, so a record never straddles two
// chunks and a failed reservation leaves the buffer untouched.
type Encoder struct {
	buf  *tracebuf.Buffer
	syms *symbols.Table
}

// NewEncoder creates an encoder writing to buf and interning names in syms.
func NewEncoder(buf *tracebuf.Buffer, syms *symbols.Table) *Encoder {
	if syms == nil {
		syms = symbols.NewTable()
	}
	return &Encoder{buf: buf, syms: syms}
}

// Buffer returns the underlying buffer.
func (e *Encoder) Buffer() *tracebuf.Buffer {
	return e.buf
}

// Intern returns the symbol id for name.
func (e *Encoder) Intern(name string) uint32 {
	return e.syms.Intern(name)
}

// TraceHeader opens a method record and returns its absolute offset.
// Method ids that do not fit 24 bits use the long form.
func (e *Encoder) TraceHeader(methodID uint32, tick int64) (int64, error) {
	size := HeaderSize(methodID)
	p, off, err := e.buf.Reserve(size)
	if err != nil {
		return 0, err
	}
	p[0] = traceTagPrefix
	p[1] = TagTraceRecord
	p[2] = indefArray
	w := Writer{p: p, n: 3}
	if size == ShortHeaderSize {
		w.byte1(bytes8Head)
		w.Word(uint64(methodID)<<TickBits | uint64(tick)&tickMask)
	} else {
		w.byte1(bytes16Head)
		w.Word(uint64(tick))
		w.Word(uint64(methodID))
	}
	return off, nil
}

// MethodFooter closes the innermost open method record. The short form packs
// calls and duration into one word; larger values switch to the long form.
func (e *Encoder) MethodFooter(duration int64, calls uint64) error {
	if duration < 0 {
		duration = 0
	}
	size := FooterSize(duration, calls)
	p, _, err := e.buf.Reserve(size)
	if err != nil {
		return err
	}
	w := Writer{p: p}
	if size == ShortFooterSize {
		w.byte1(bytes8Head)
		w.Word(calls<<TickBits | uint64(duration))
	} else {
		w.byte1(bytes16Head)
		w.Word(uint64(duration))
		w.Word(calls)
	}
	w.Break()
	return nil
}

// DiscardMarker closes a method record whose content could not be rewound.
// It is a long-form footer with zero duration and zero calls, a shape the
// regular footer never produces.
func (e *Encoder) DiscardMarker() error {
	p, _, err := e.buf.Reserve(LongFooterSize)
	if err != nil {
		return err
	}
	w := Writer{p: p}
	w.byte1(bytes16Head)
	w.Word(0)
	w.Word(0)
	w.Break()
	return nil
}

// TraceBegin writes the start of a trace: wall-clock time and trace id.
func (e *Encoder) TraceBegin(clock int64, traceID uint32) error {
	size := 3 + intSize(clock) + uintSize(uint64(traceID))
	p, _, err := e.buf.Reserve(size)
	if err != nil {
		return err
	}
	w := Writer{p: p}
	w.byte1(traceTagPrefix)
	w.byte1(TagTraceBegin)
	w.ArrayHeader(2)
	w.Int(clock)
	w.Uint(uint64(traceID))
	return nil
}

// Attribute writes a single attribute. A nonzero traceID scopes it to that
// trace: the attribute map is then wrapped as the value of a one-entry
// attribute map keyed by the trace id.
func (e *Encoder) Attribute(traceID, attrID uint32, v any) error {
	val := prepareValue(v)
	size := 2 + uintSize(uint64(attrID)) + val.size
	if traceID != 0 {
		size += 2 + uintSize(uint64(traceID))
	}
	p, _, err := e.buf.Reserve(size)
	if err != nil {
		return err
	}
	w := Writer{p: p}
	if traceID != 0 {
		w.byte1(majorTag | TagAttribute)
		w.MapHeader(1)
		w.Uint(uint64(traceID))
	}
	w.byte1(majorTag | TagAttribute)
	w.MapHeader(1)
	w.Uint(uint64(attrID))
	writeValue(&w, val)
	return e.check(&w, size, "attribute")
}

// Exception writes an exception record with its whole cause chain.
func (e *Encoder) Exception(x *Exception) error {
	size := x.Size()
	p, _, err := e.buf.Reserve(size)
	if err != nil {
		return err
	}
	w := Writer{p: p}
	writeException(&w, x)
	return e.check(&w, size, "exception")
}

func (e *Encoder) check(w *Writer, size int, record string) error {
	if w.n != size {
		return fmt.Errorf("traceformat: %s record wrote %d bytes, reserved %d", record, w.n, size)
	}
	return nil
}
