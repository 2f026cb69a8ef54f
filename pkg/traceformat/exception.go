package traceformat

// Exception is an exception record in encodable form: names are already
// interned to symbol ids.
//
// A Ref exception carries only its ID and points back at the exception
// serialized immediately before it.
type Exception struct {
	ID  uint64 `json:"id"`
	Ref bool   `json:"ref,omitempty"`

	Class      uint32  `json:"class,omitempty"`
	Message    string  `json:"message,omitempty"`
	HasMessage bool    `json:"has_message,omitempty"`
	Frames     []Frame `json:"frames,omitempty"`

	Cause *Exception `json:"cause,omitempty"`
}

// Frame is one stack frame of an exception.
type Frame struct {
	Class  uint32 `json:"class"`
	Method uint32 `json:"method"`
	File   uint32 `json:"file"`
	Line   int64  `json:"line"`
}

// Size returns the encoded size of the exception, including its causes.
func (x *Exception) Size() int {
	if x.Ref {
		return 2 + uintSize(x.ID)
	}
	n := 2 + 1 + uintSize(x.ID) + refSize(x.Class)
	if x.HasMessage {
		n += textSize(x.Message)
	} else {
		n++
	}
	n += uintSize(uint64(len(x.Frames)))
	for _, f := range x.Frames {
		n += 1 + refSize(f.Class) + refSize(f.Method) + refSize(f.File) + intSize(f.Line)
	}
	if x.Cause != nil {
		n += x.Cause.Size()
	} else {
		n++
	}
	return n
}

func writeException(w *Writer, x *Exception) {
	if x.Ref {
		w.byte1(traceTagPrefix)
		w.byte1(TagExceptionRef)
		w.Uint(x.ID)
		return
	}

	w.byte1(traceTagPrefix)
	w.byte1(TagException)
	w.ArrayHeader(5)
	w.Uint(x.ID)
	w.Ref(x.Class)
	if x.HasMessage {
		w.Text(x.Message)
	} else {
		w.Null()
	}
	w.ArrayHeader(len(x.Frames))
	for _, f := range x.Frames {
		w.ArrayHeader(4)
		w.Ref(f.Class)
		w.Ref(f.Method)
		w.Ref(f.File)
		w.Int(f.Line)
	}
	if x.Cause != nil {
		writeException(w, x.Cause)
	} else {
		w.Null()
	}
}
