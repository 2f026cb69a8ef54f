package traceformat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var decMode cbor.DecMode

func init() {
	dm, err := cbor.DecOptions{
		MaxNestedLevels:  1024,
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 16,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("traceformat: cbor dec mode: %v", err))
	}
	decMode = dm
}

// Stream is a decoded trace stream.
type Stream struct {
	// Methods are the outermost method records in stream order.
	Methods []*Method `json:"methods"`
}

// Count returns the total number of method records in the stream.
func (s *Stream) Count() int {
	n := 0
	var walk func(ms []*Method)
	walk = func(ms []*Method) {
		for _, m := range ms {
			n++
			walk(m.Children)
		}
	}
	walk(s.Methods)
	return n
}

// Method is one decoded method record.
type Method struct {
	MethodID uint32 `json:"method_id"`
	Start    int64  `json:"start"`
	Duration int64  `json:"duration"`
	Calls    uint64 `json:"calls"`

	Begin      *TraceBegin  `json:"begin,omitempty"`
	Attributes []Attribute  `json:"attributes,omitempty"`
	Exceptions []*Exception `json:"exceptions,omitempty"`
	Children   []*Method    `json:"children,omitempty"`

	// Open is set when the stream ended before the method's footer.
	Open bool `json:"open,omitempty"`
	// Discarded is set when the method was closed with a discard marker.
	Discarded bool `json:"discarded,omitempty"`
}

// TraceBegin is a decoded trace-begin record.
type TraceBegin struct {
	Clock   int64  `json:"clock"`
	TraceID uint32 `json:"trace_id"`
}

// Attribute is a decoded attribute record.
type Attribute struct {
	TraceID uint32 `json:"trace_id,omitempty"`
	AttrID  uint32 `json:"attr_id"`
	Value   any    `json:"value"`
}

// FormatError reports malformed input at a byte offset.
type FormatError struct {
	Offset int
	Msg    string
	Err    error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("traceformat: offset %d: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("traceformat: offset %d: %s", e.Offset, e.Msg)
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Decode rebuilds the method trees of a trace stream.
//
// Method records are walked structurally; every other record is a single
// CBOR item read with fxamacker/cbor. A stream that ends inside open method
// records decodes successfully with those methods marked Open, which is what
// a flush from a nested trace root produces.
func Decode(data []byte) (*Stream, error) {
	d := &decoder{data: data}
	s := &Stream{}
	var stack []*Method

	for d.pos < len(data) {
		switch {
		case d.atHeader():
			m, err := d.header()
			if err != nil {
				return nil, err
			}
			if n := len(stack); n > 0 {
				stack[n-1].Children = append(stack[n-1].Children, m)
			} else {
				s.Methods = append(s.Methods, m)
			}
			stack = append(stack, m)

		case data[d.pos] == bytes8Head || data[d.pos] == bytes16Head:
			if len(stack) == 0 {
				return nil, d.errorf("method footer outside a method record")
			}
			if err := d.footer(stack[len(stack)-1]); err != nil {
				return nil, err
			}
			stack = stack[:len(stack)-1]

		default:
			if len(stack) == 0 {
				return nil, d.errorf("record outside a method record")
			}
			if err := d.record(stack[len(stack)-1]); err != nil {
				return nil, err
			}
		}
	}

	for _, m := range stack {
		m.Open = true
	}
	return s, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) errorf(format string, args ...any) error {
	return &FormatError{Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) atHeader() bool {
	return d.pos+1 < len(d.data) && d.data[d.pos] == traceTagPrefix && d.data[d.pos+1] == TagTraceRecord
}

func (d *decoder) need(n int) error {
	if len(d.data)-d.pos < n {
		return d.errorf("truncated record: need %d bytes, have %d", n, len(d.data)-d.pos)
	}
	return nil
}

func (d *decoder) word(at int) uint64 {
	return binary.BigEndian.Uint64(d.data[at:])
}

func (d *decoder) header() (*Method, error) {
	if err := d.need(4); err != nil {
		return nil, err
	}
	if d.data[d.pos+2] != indefArray {
		return nil, d.errorf("method record is not an indefinite array")
	}
	m := &Method{}
	switch d.data[d.pos+3] {
	case bytes8Head:
		if err := d.need(ShortHeaderSize); err != nil {
			return nil, err
		}
		v := d.word(d.pos + 4)
		m.MethodID = uint32(v >> TickBits)
		m.Start = int64(v & tickMask)
		d.pos += ShortHeaderSize
	case bytes16Head:
		if err := d.need(LongHeaderSize); err != nil {
			return nil, err
		}
		m.Start = int64(d.word(d.pos + 4))
		m.MethodID = uint32(d.word(d.pos + 12))
		d.pos += LongHeaderSize
	default:
		return nil, d.errorf("unexpected method header byte 0x%02x", d.data[d.pos+3])
	}
	return m, nil
}

func (d *decoder) footer(m *Method) error {
	if d.data[d.pos] == bytes8Head {
		if err := d.need(ShortFooterSize); err != nil {
			return err
		}
		v := d.word(d.pos + 1)
		m.Calls = v >> TickBits
		m.Duration = int64(v & tickMask)
		d.pos += 9
	} else {
		if err := d.need(LongFooterSize); err != nil {
			return err
		}
		m.Duration = int64(d.word(d.pos + 1))
		m.Calls = d.word(d.pos + 9)
		m.Discarded = m.Duration == 0 && m.Calls == 0
		d.pos += 17
	}
	if d.data[d.pos] != breakByte {
		return d.errorf("method footer not terminated")
	}
	d.pos++
	return nil
}

func (d *decoder) record(m *Method) error {
	dec := decMode.NewDecoder(bytes.NewReader(d.data[d.pos:]))
	var v any
	if err := dec.Decode(&v); err != nil {
		return &FormatError{Offset: d.pos, Msg: "invalid record", Err: err}
	}

	tag, ok := v.(cbor.Tag)
	if !ok {
		return d.errorf("untagged record of type %T", v)
	}
	switch tag.Number {
	case TagTraceBegin:
		b, err := toTraceBegin(tag.Content)
		if err != nil {
			return &FormatError{Offset: d.pos, Msg: "trace begin", Err: err}
		}
		m.Begin = b
	case TagAttribute:
		a, err := toAttribute(tag.Content)
		if err != nil {
			return &FormatError{Offset: d.pos, Msg: "attribute", Err: err}
		}
		m.Attributes = append(m.Attributes, a)
	case TagException, TagExceptionRef:
		x, err := toException(tag)
		if err != nil {
			return &FormatError{Offset: d.pos, Msg: "exception", Err: err}
		}
		m.Exceptions = append(m.Exceptions, x)
	default:
		return d.errorf("unknown record tag %d", tag.Number)
	}
	d.pos += dec.NumBytesRead()
	return nil
}

func toTraceBegin(v any) (*TraceBegin, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return nil, fmt.Errorf("expected 2-element array, got %T", v)
	}
	clock, err := toInt64(arr[0])
	if err != nil {
		return nil, err
	}
	id, err := toUint32(arr[1])
	if err != nil {
		return nil, err
	}
	return &TraceBegin{Clock: clock, TraceID: id}, nil
}

func toAttribute(v any) (Attribute, error) {
	key, val, err := singleEntry(v)
	if err != nil {
		return Attribute{}, err
	}
	if inner, ok := val.(cbor.Tag); ok && inner.Number == TagAttribute {
		attrID, attrVal, err := singleEntry(inner.Content)
		if err != nil {
			return Attribute{}, err
		}
		return Attribute{TraceID: key, AttrID: attrID, Value: normalize(attrVal)}, nil
	}
	return Attribute{AttrID: key, Value: normalize(val)}, nil
}

func singleEntry(v any) (uint32, any, error) {
	m, ok := v.(map[any]any)
	if !ok || len(m) != 1 {
		return 0, nil, fmt.Errorf("expected one-entry map, got %T", v)
	}
	for k, val := range m {
		id, err := toUint32(k)
		if err != nil {
			return 0, nil, err
		}
		return id, val, nil
	}
	return 0, nil, nil
}

func toException(v any) (*Exception, error) {
	if v == nil {
		return nil, nil
	}
	tag, ok := v.(cbor.Tag)
	if !ok {
		return nil, fmt.Errorf("expected exception tag, got %T", v)
	}

	if tag.Number == TagExceptionRef {
		id, ok := tag.Content.(uint64)
		if !ok {
			return nil, fmt.Errorf("exception reference id has type %T", tag.Content)
		}
		return &Exception{ID: id, Ref: true}, nil
	}
	if tag.Number != TagException {
		return nil, fmt.Errorf("unexpected tag %d in exception chain", tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 5 {
		return nil, fmt.Errorf("expected 5-element exception array, got %T", tag.Content)
	}
	x := &Exception{}
	if x.ID, ok = arr[0].(uint64); !ok {
		return nil, fmt.Errorf("exception id has type %T", arr[0])
	}
	var err error
	if x.Class, err = toRef(arr[1]); err != nil {
		return nil, err
	}
	switch msg := arr[2].(type) {
	case nil:
	case string:
		x.Message, x.HasMessage = msg, true
	default:
		return nil, fmt.Errorf("exception message has type %T", arr[2])
	}

	frames, ok := arr[3].([]any)
	if !ok {
		return nil, fmt.Errorf("exception frames have type %T", arr[3])
	}
	x.Frames = make([]Frame, 0, len(frames))
	for _, fv := range frames {
		f, err := toFrame(fv)
		if err != nil {
			return nil, err
		}
		x.Frames = append(x.Frames, f)
	}

	if x.Cause, err = toException(arr[4]); err != nil {
		return nil, fmt.Errorf("cause: %w", err)
	}
	return x, nil
}

func toFrame(v any) (Frame, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 4 {
		return Frame{}, fmt.Errorf("expected 4-element frame, got %T", v)
	}
	var f Frame
	var err error
	if f.Class, err = toRef(arr[0]); err != nil {
		return Frame{}, err
	}
	if f.Method, err = toRef(arr[1]); err != nil {
		return Frame{}, err
	}
	if f.File, err = toRef(arr[2]); err != nil {
		return Frame{}, err
	}
	if f.Line, err = toInt64(arr[3]); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func toRef(v any) (uint32, error) {
	tag, ok := v.(cbor.Tag)
	if !ok || tag.Number != TagStringRef {
		return 0, fmt.Errorf("expected string reference, got %T", v)
	}
	return toUint32(tag.Content)
}

func toUint32(v any) (uint32, error) {
	n, ok := v.(uint64)
	if !ok || n > 0xFFFFFFFF {
		return 0, fmt.Errorf("expected 32-bit id, got %v (%T)", v, v)
	}
	return uint32(n), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case uint64:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// normalize turns decoded CBOR containers into JSON-friendly values.
func normalize(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case cbor.Tag:
		return map[string]any{"tag": x.Number, "value": normalize(x.Content)}
	default:
		return v
	}
}
