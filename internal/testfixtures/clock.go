package testfixtures

import (
	"sync"
	"time"
)

var referenceTime = time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)

// ReferenceTime is the baseline instant used by fixtures: the last day of a
// month in a leap year, which exercises month-end clamping.
func ReferenceTime() time.Time {
	return referenceTime
}

// Clock is a controllable time source. With a non-zero tick every call to
// Now advances the clock, so successive timestamps are distinct.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	tick    time.Duration
}

// NewClock returns a clock frozen at start, or at ReferenceTime when start
// is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// NewTickingClock returns a clock that advances by tick after each reading.
func NewTickingClock(start time.Time, tick time.Duration) *Clock {
	clock := NewClock(start)
	clock.tick = tick
	return clock
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.tick)
	return now
}

// NowFunc exposes Now for dependency injection.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
