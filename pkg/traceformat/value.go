package traceformat

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var valueEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("traceformat: cbor enc mode: %v", err))
	}
	valueEncMode = em
}

// value is an attribute value ready to be written: either a scalar handled
// by writeValue or pre-encoded CBOR in raw.
type value struct {
	v    any
	raw  []byte
	size int
}

// prepareValue resolves the encoding of v and its exact size.
//
// Scalars are written directly. time.Time is written as Unix nanoseconds and
// time.Duration as nanoseconds. Errors are written as their message. Any
// other value goes through canonical CBOR; values CBOR cannot represent are
// written as their fmt text.
func prepareValue(v any) value {
	switch x := v.(type) {
	case nil, bool:
		return value{v: x, size: 1}
	case int:
		return value{v: int64(x), size: intSize(int64(x))}
	case int8:
		return value{v: int64(x), size: intSize(int64(x))}
	case int16:
		return value{v: int64(x), size: intSize(int64(x))}
	case int32:
		return value{v: int64(x), size: intSize(int64(x))}
	case int64:
		return value{v: x, size: intSize(x)}
	case uint:
		return value{v: uint64(x), size: uintSize(uint64(x))}
	case uint8:
		return value{v: uint64(x), size: uintSize(uint64(x))}
	case uint16:
		return value{v: uint64(x), size: uintSize(uint64(x))}
	case uint32:
		return value{v: uint64(x), size: uintSize(uint64(x))}
	case uint64:
		return value{v: x, size: uintSize(x)}
	case float32:
		return value{v: x, size: 5}
	case float64:
		return value{v: x, size: 9}
	case string:
		return value{v: x, size: textSize(x)}
	case []byte:
		return value{v: x, size: uintSize(uint64(len(x))) + len(x)}
	case time.Time:
		ns := x.UnixNano()
		return value{v: ns, size: intSize(ns)}
	case time.Duration:
		return value{v: int64(x), size: intSize(int64(x))}
	case error:
		s := x.Error()
		return value{v: s, size: textSize(s)}
	}

	raw, err := valueEncMode.Marshal(v)
	if err != nil {
		s := fmt.Sprint(v)
		return value{v: s, size: textSize(s)}
	}
	return value{raw: raw, size: len(raw)}
}

// writeValue writes a prepared value.
func writeValue(w *Writer, val value) {
	if val.raw != nil {
		w.Raw(val.raw)
		return
	}
	switch x := val.v.(type) {
	case nil:
		w.Null()
	case bool:
		w.Bool(x)
	case int64:
		w.Int(x)
	case uint64:
		w.Uint(x)
	case float32:
		w.Float32(x)
	case float64:
		w.Float64(x)
	case string:
		w.Text(x)
	case []byte:
		w.ByteString(x)
	}
}
