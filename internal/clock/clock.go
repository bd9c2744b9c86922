// Package clock provides the monotonic millisecond counter the station core
// runs on. There is no wall-clock time in the core.
package clock

import (
	"sync/atomic"
	"time"
)

type Clock interface {
	// Millis returns milliseconds elapsed since boot.
	Millis() int64
}

type monotonic struct {
	start time.Time
}

// New returns a clock that starts counting at zero now.
func New() Clock {
	return &monotonic{start: time.Now()}
}

func (m *monotonic) Millis() int64 {
	return time.Since(m.start).Milliseconds()
}

// Manual is a clock advanced explicitly. It is safe for concurrent use.
type Manual struct {
	ms atomic.Int64
}

func (m *Manual) Millis() int64 {
	return m.ms.Load()
}

// Set moves the clock to ms.
func (m *Manual) Set(ms int64) {
	m.ms.Store(ms)
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.ms.Add(d.Milliseconds())
}
