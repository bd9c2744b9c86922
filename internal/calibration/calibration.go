package calibration

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var ErrInvalidOffset = errors.New("invalid offset")

// Offsets are additive deltas applied after raw conversion.
type Offsets struct {
	Temperature float64
	Humidity    float64
	Pressure    float64
	Altitude    float64
}

// Validate rejects offsets that would poison every later reading.
func (o Offsets) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"toff", o.Temperature},
		{"hoff", o.Humidity},
		{"poff", o.Pressure},
		{"aoff", o.Altitude},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidOffset, f.name)
		}
	}
	return nil
}

// Store holds the live calibration offsets. The HTTP config handler writes it
// and the fusion step reads it, from different goroutines.
type Store struct {
	mu      sync.RWMutex
	offsets Offsets
}

func NewStore() *Store {
	return &Store{}
}

// Get returns a copy of the current offsets.
func (s *Store) Get() Offsets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offsets
}

// Set replaces all four offsets in one step.
func (s *Store) Set(o Offsets) {
	s.mu.Lock()
	s.offsets = o
	s.mu.Unlock()
}
