package docmodel

import (
	"sync/atomic"
	"time"
)

// Clock supplies the "now" used by every time-dependent store decision:
// ingestion checks, expiry, and the Set timestamp bump. It is an
// injectable-clock: wall-clock microseconds by default, with an
// optional test override. The test-clock override is per-store, not
// global, so each Clock instance is independent.
type Clock struct {
	override atomic.Pointer[func() int64]
}

// NewClock creates a clock that reads the wall clock until overridden.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current instant in microseconds since epoch, or the
// overridden value if SetOverride has been called with a non-nil
// function.
func (c *Clock) Now() int64 {
	if fn := c.override.Load(); fn != nil {
		return (*fn)()
	}
	return time.Now().UnixMicro()
}

// SetOverride installs a test clock function. Passing nil reverts to the
// wall clock.
func (c *Clock) SetOverride(fn func() int64) {
	if fn == nil {
		c.override.Store(nil)
		return
	}
	c.override.Store(&fn)
}

// Fixed returns a clock-override function that always returns t,
// convenient for tests that want a constant "now".
func Fixed(t int64) func() int64 {
	return func() int64 { return t }
}
