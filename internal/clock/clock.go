// Package clock abstracts time so that trial timing can be driven either by
// the wall clock or deterministically from tests.
package clock

import "time"

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the timer; false means it already fired or was stopped.
	Stop() bool
}

// Clock reports the current instant and runs callbacks after a delay.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Milliseconds converts a duration into fractional milliseconds, the unit
// reaction times are reported in.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
