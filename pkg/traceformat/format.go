package traceformat

// CBOR tag numbers used by trace records.
const (
	TagStringRef    = 6
	TagAttribute    = 7
	TagTraceRecord  = 0x28
	TagTraceBegin   = 0x29
	TagException    = 0x2B
	TagExceptionRef = 0x2C
)

// CBOR major types, pre-shifted into the initial byte.
const (
	majorUint   byte = 0x00
	majorNegInt byte = 0x20
	majorBytes  byte = 0x40
	majorText   byte = 0x60
	majorArray  byte = 0x80
	majorMap    byte = 0xA0
	majorTag    byte = 0xC0
	majorSimple byte = 0xE0
)

const (
	simpleFalse    byte = 0xF4
	simpleTrue     byte = 0xF5
	simpleNull     byte = 0xF6
	floatSingle    byte = 0xFA
	floatDouble    byte = 0xFB
	breakByte      byte = 0xFF
	indefArray     byte = 0x9F
	bytes8Head     byte = 0x48
	bytes16Head    byte = 0x50
	traceTagPrefix byte = 0xD8 // one-byte tag number follows
)

// Packing of the 8-byte header and footer words.
const (
	// TickBits is the number of tick bits kept in a short header and the
	// number of duration bits kept in a short footer.
	TickBits = 40
	tickMask = 1<<TickBits - 1

	// MaxShortMethodID is the largest method id that fits a short header.
	MaxShortMethodID = 1<<24 - 1
	// MaxShortCalls is the largest call count that fits a short footer.
	MaxShortCalls = 1<<24 - 1
	// MaxShortDuration is the largest duration that fits a short footer.
	MaxShortDuration = tickMask
)

// Fixed record sizes in bytes.
const (
	ShortHeaderSize = 4 + 8     // D8 28 9F 48 + word
	LongHeaderSize  = 4 + 8 + 8 // D8 28 9F 50 + tick + method id
	ShortFooterSize = 1 + 8 + 1 // 48 + word + FF
	LongFooterSize  = 1 + 16 + 1
)

// uintSize returns the encoded size of a CBOR head carrying v.
func uintSize(v uint64) int {
	switch {
	case v < 24:
		return 1
	case v <= 0xFF:
		return 2
	case v <= 0xFFFF:
		return 3
	case v <= 0xFFFFFFFF:
		return 5
	default:
		return 9
	}
}

// intSize returns the encoded size of a signed integer.
func intSize(v int64) int {
	if v < 0 {
		return uintSize(uint64(-1 - v))
	}
	return uintSize(uint64(v))
}

// textSize returns the encoded size of a text string.
func textSize(s string) int {
	return uintSize(uint64(len(s))) + len(s)
}

// refSize returns the encoded size of a string reference.
func refSize(id uint32) int {
	return 1 + uintSize(uint64(id))
}

// HeaderSize returns the size of the trace header written for methodID.
func HeaderSize(methodID uint32) int {
	if methodID > MaxShortMethodID {
		return LongHeaderSize
	}
	return ShortHeaderSize
}

// FooterSize returns the size of the method footer for the given values.
func FooterSize(duration int64, calls uint64) int {
	if shortFooter(duration, calls) {
		return ShortFooterSize
	}
	return LongFooterSize
}

func shortFooter(duration int64, calls uint64) bool {
	return calls <= MaxShortCalls && duration >= 0 && duration <= MaxShortDuration
}
