package reservation

import "time"

// Clock is the time source used for expiry comparisons. Injectable so tests
// can simulate expiry deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
