package recorder

import "time"

// Clock supplies coarse monotonic ticks and wall-clock time.
type Clock interface {
	// Ticks returns monotonic time in tick units.
	Ticks() int64
	// Wall returns wall-clock time in Unix milliseconds.
	Wall() int64
}

// monotonicClock derives ticks from the runtime's monotonic clock.
type monotonicClock struct {
	origin time.Time
	shift  uint
}

// NewClock returns a clock counting (monotonic nanoseconds >> shift) since
// its creation.
func NewClock(shift uint) Clock {
	return &monotonicClock{origin: time.Now(), shift: shift}
}

func (c *monotonicClock) Ticks() int64 {
	return int64(time.Since(c.origin)) >> c.shift
}

func (c *monotonicClock) Wall() int64 {
	return time.Now().UnixMilli()
}

// ManualClock is a Clock driven by hand, for tests and replay.
type ManualClock struct {
	T int64 // current tick
	W int64 // current wall-clock milliseconds
}

// Ticks returns the current tick.
func (c *ManualClock) Ticks() int64 { return c.T }

// Wall returns the current wall-clock time.
func (c *ManualClock) Wall() int64 { return c.W }

// Advance moves the clock forward by n ticks.
func (c *ManualClock) Advance(n int64) { c.T += n }
