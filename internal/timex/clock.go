package timex

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock, always in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
