package alert

import (
	"context"
	"fmt"
	"time"

	"cloudpico-station/internal/types"
)

const DefaultCooldown = 5 * time.Second

// Tone plays a frequency for a duration and returns when it is done. A
// frequency of zero or less is silence for the duration.
type Tone interface {
	Play(ctx context.Context, frequencyHz int, d time.Duration) error
}

// Notifier is told after an alert sequence has played.
type Notifier interface {
	AlertFired(r types.Reading)
}

type step struct {
	frequencyHz int
	duration    time.Duration
}

// sequence is two rising beeps separated by a short pause.
var sequence = []step{
	{800, 200 * time.Millisecond},
	{0, 100 * time.Millisecond},
	{1000, 200 * time.Millisecond},
}

// Fixed trigger bands. They intentionally ignore the threshold profile.
const (
	temperatureLow  = 10.0
	temperatureHigh = 35.0
	humidityLow     = 30.0
	humidityHigh    = 80.0
)

// Sequencer fires the audible alert at most once per cooldown.
type Sequencer struct {
	tone      Tone
	cooldown  int64
	lastAlert int64
	notifiers []Notifier
}

func NewSequencer(tone Tone, cooldown time.Duration, notifiers ...Notifier) *Sequencer {
	return &Sequencer{
		tone:      tone,
		cooldown:  cooldown.Milliseconds(),
		notifiers: notifiers,
	}
}

// Triggered reports whether r is outside the alert bands.
func Triggered(r types.Reading) bool {
	tempOut := r.TemperatureC < temperatureLow || r.TemperatureC > temperatureHigh
	humOut := r.HumidityPct < humidityLow || r.HumidityPct > humidityHigh
	return tempOut || humOut
}

// Check plays the alert sequence when the cooldown has elapsed since the last
// alert and r is out of range. nowMs is the monotonic clock. The timestamp is
// only rearmed when the sequence fires.
func (s *Sequencer) Check(ctx context.Context, nowMs int64, r types.Reading) (bool, error) {
	if nowMs-s.lastAlert < s.cooldown {
		return false, nil
	}
	if !Triggered(r) {
		return false, nil
	}
	s.lastAlert = nowMs

	for _, st := range sequence {
		if err := s.tone.Play(ctx, st.frequencyHz, st.duration); err != nil {
			return true, fmt.Errorf("alert tone %d Hz: %w", st.frequencyHz, err)
		}
	}
	for _, n := range s.notifiers {
		n.AlertFired(r)
	}
	return true, nil
}
