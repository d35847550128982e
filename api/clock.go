package api

import "time"

// Clock supply time to components that age cached objects. Pools
// take the wall clock by default; tests can install their own via
// Setclock on the owning object.
type Clock interface {
	Now() time.Time
}

// Systemclock return the wall clock.
func Systemclock() Clock {
	return sysclock{}
}

type sysclock struct{}

func (c sysclock) Now() time.Time {
	return time.Now()
}
