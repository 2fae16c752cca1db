// Package clock lets time-dependent components be driven deterministically in tests.
package clock

import "time"

// Clock abstracts the wall clock and blocking sleeps.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Real is backed by the time package.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(d time.Duration) { time.Sleep(d) }
