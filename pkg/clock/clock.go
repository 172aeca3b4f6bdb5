// Package clock abstracts wall-clock time so transition arithmetic and the
// live display loops are deterministically testable.
package clock

import "time"

// Ticker delivers ticks on C until stopped.
// This interface allows for mock implementations in tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock provides time-related operations.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// System is the default Clock implementation using the standard library.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }
