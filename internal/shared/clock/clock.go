// Package clock abstracts wall-clock access so time-based rules
// (guest session expiry, stale visit detection) are testable.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a Clock that returns a settable instant. Intended for tests.
type Fixed struct {
	Time time.Time
}

// Now returns the fixed instant.
func (f *Fixed) Now() time.Time {
	return f.Time
}

// Advance moves the fixed instant forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.Time = f.Time.Add(d)
}
