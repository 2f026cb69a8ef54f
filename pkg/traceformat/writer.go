package traceformat

import (
	"encoding/binary"
	"math"
)

// Writer fills a pre-reserved byte window. The window is sized from the
// record's worst case before any byte is written, so the writer never has to
// grow; writing past the window is a programming error and panics.
type Writer struct {
	p []byte
	n int
}

// NewWriter returns a writer over p.
func NewWriter(p []byte) Writer {
	return Writer{p: p}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.n
}

// Bytes returns the written part of the window.
func (w *Writer) Bytes() []byte {
	return w.p[:w.n]
}

func (w *Writer) byte1(b byte) {
	w.p[w.n] = b
	w.n++
}

func (w *Writer) head(major byte, v uint64) {
	switch {
	case v < 24:
		w.byte1(major | byte(v))
	case v <= 0xFF:
		w.p[w.n] = major | 24
		w.p[w.n+1] = byte(v)
		w.n += 2
	case v <= 0xFFFF:
		w.p[w.n] = major | 25
		binary.BigEndian.PutUint16(w.p[w.n+1:], uint16(v))
		w.n += 3
	case v <= 0xFFFFFFFF:
		w.p[w.n] = major | 26
		binary.BigEndian.PutUint32(w.p[w.n+1:], uint32(v))
		w.n += 5
	default:
		w.p[w.n] = major | 27
		binary.BigEndian.PutUint64(w.p[w.n+1:], v)
		w.n += 9
	}
}

// Uint writes an unsigned integer with the smallest head.
func (w *Writer) Uint(v uint64) {
	w.head(majorUint, v)
}

// Int writes a signed integer with the smallest head.
func (w *Writer) Int(v int64) {
	if v < 0 {
		w.head(majorNegInt, uint64(-1-v))
		return
	}
	w.head(majorUint, uint64(v))
}

// Word writes a raw 8-byte big-endian value.
func (w *Writer) Word(v uint64) {
	binary.BigEndian.PutUint64(w.p[w.n:], v)
	w.n += 8
}

// Text writes a text string.
func (w *Writer) Text(s string) {
	w.head(majorText, uint64(len(s)))
	w.n += copy(w.p[w.n:], s)
}

// ByteString writes a byte string.
func (w *Writer) ByteString(b []byte) {
	w.head(majorBytes, uint64(len(b)))
	w.n += copy(w.p[w.n:], b)
}

// Ref writes a reference to an interned symbol.
func (w *Writer) Ref(id uint32) {
	w.byte1(majorTag | TagStringRef)
	w.Uint(uint64(id))
}

// Tag writes a tag head.
func (w *Writer) Tag(n uint64) {
	w.head(majorTag, n)
}

// ArrayHeader writes the head of an array with n elements.
func (w *Writer) ArrayHeader(n int) {
	w.head(majorArray, uint64(n))
}

// MapHeader writes the head of a map with n pairs.
func (w *Writer) MapHeader(n int) {
	w.head(majorMap, uint64(n))
}

// Null writes the null marker.
func (w *Writer) Null() {
	w.byte1(simpleNull)
}

// Bool writes true or false.
func (w *Writer) Bool(v bool) {
	if v {
		w.byte1(simpleTrue)
	} else {
		w.byte1(simpleFalse)
	}
}

// Float32 writes a single-precision float.
func (w *Writer) Float32(v float32) {
	w.byte1(floatSingle)
	binary.BigEndian.PutUint32(w.p[w.n:], math.Float32bits(v))
	w.n += 4
}

// Float64 writes a double-precision float.
func (w *Writer) Float64(v float64) {
	w.byte1(floatDouble)
	binary.BigEndian.PutUint64(w.p[w.n:], math.Float64bits(v))
	w.n += 8
}

// Raw copies pre-encoded CBOR.
func (w *Writer) Raw(b []byte) {
	w.n += copy(w.p[w.n:], b)
}

// Break writes the terminator of an indefinite-length item.
func (w *Writer) Break() {
	w.byte1(breakByte)
}
