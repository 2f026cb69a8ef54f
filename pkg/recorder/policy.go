package recorder

// Policy decides which completed calls stay in the stream and which traces
// are handed to the output.
type Policy struct {
	MinMethodTicks int64
	MinTraceTicks  int64
}

// Keep reports whether a completed call is kept. A call whose header lies
// before boundary sits in a finalized chunk and cannot be rewound, so it is
// always kept.
func (p Policy) Keep(duration int64, flags Flags, offset, boundary int64) bool {
	return duration >= p.MinMethodTicks || flags&FlagSubmitMethod != 0 || offset < boundary
}

// Flush reports whether a completed trace root is flushed.
func (p Policy) Flush(duration int64, flags Flags) bool {
	return duration >= p.MinTraceTicks || flags&FlagSubmitTrace != 0
}
