// Package input turns raw falling edges from the two front-panel buttons into
// single-shot pressed flags.
package input

import (
	"math"
	"sync/atomic"
	"time"
)

const DefaultDebounce = 200 * time.Millisecond

type Button int

const (
	ButtonA Button = iota
	ButtonB

	buttonCount
)

func (b Button) String() string {
	switch b {
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	default:
		return "?"
	}
}

// line is written from the edge goroutine and read from the main loop.
type line struct {
	pending      atomic.Bool
	lastAccepted atomic.Int64
}

// Debouncer is safe for one edge writer per button racing the main loop.
type Debouncer struct {
	interval int64
	lines    [buttonCount]line
}

func NewDebouncer(interval time.Duration) *Debouncer {
	d := &Debouncer{interval: interval.Milliseconds()}
	for i := range d.lines {
		// The first edge after boot is always accepted.
		d.lines[i].lastAccepted.Store(math.MinInt64 / 2)
	}
	return d
}

// Edge records a falling edge on b at nowMs. It returns whether the edge was
// accepted; edges closer than the debounce interval to the last accepted one
// are dropped.
func (d *Debouncer) Edge(b Button, nowMs int64) bool {
	if b < 0 || b >= buttonCount {
		return false
	}
	l := &d.lines[b]
	last := l.lastAccepted.Load()
	if nowMs-last < d.interval {
		return false
	}
	if !l.lastAccepted.CompareAndSwap(last, nowMs) {
		return false
	}
	l.pending.Store(true)
	return true
}

// Consume clears and returns b's pressed flag.
func (d *Debouncer) Consume(b Button) bool {
	if b < 0 || b >= buttonCount {
		return false
	}
	return d.lines[b].pending.Swap(false)
}
