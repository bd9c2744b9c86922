package hardware

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"

	"cloudpico-station/internal/input"
)

func pinByName(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return p, nil
}

// edgePoll bounds how long a watcher blocks before rechecking its context.
const edgePoll = 100 * time.Millisecond

// Buttons watches the two active-low front-panel buttons.
type Buttons struct {
	pins   map[input.Button]gpio.PinIn
	logger *slog.Logger
}

// NewButtons configures each pin as a pulled-up input interrupting on the
// falling edge.
func NewButtons(pins map[input.Button]gpio.PinIn, logger *slog.Logger) (*Buttons, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for b, p := range pins {
		if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("button %s (%s): %w", b, p, err)
		}
	}
	return &Buttons{pins: pins, logger: logger}, nil
}

// Run calls onEdge for every falling edge until ctx is done. onEdge runs on
// the watcher goroutine of its button.
func (bs *Buttons) Run(ctx context.Context, onEdge func(b input.Button)) {
	done := make(chan struct{}, len(bs.pins))
	for b, p := range bs.pins {
		go func(b input.Button, p gpio.PinIn) {
			defer func() { done <- struct{}{} }()
			for ctx.Err() == nil {
				if p.WaitForEdge(edgePoll) {
					bs.logger.Debug("button edge", "button", b.String())
					onEdge(b)
				}
			}
		}(b, p)
	}
	for range bs.pins {
		<-done
	}
}

// RGBLED is a common-cathode LED on three digital pins. Any non-zero channel
// is driven high.
type RGBLED struct {
	r, g, b gpio.PinOut
}

func NewRGBLED(r, g, b gpio.PinOut) (*RGBLED, error) {
	l := &RGBLED{r: r, g: g, b: b}
	if err := l.Set(color.RGBA{}); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *RGBLED) Set(c color.RGBA) error {
	for _, ch := range []struct {
		pin gpio.PinOut
		v   uint8
	}{{l.r, c.R}, {l.g, c.G}, {l.b, c.B}} {
		if err := ch.pin.Out(gpio.Level(ch.v > 0)); err != nil {
			return fmt.Errorf("led %s: %w", ch.pin, err)
		}
	}
	return nil
}

// Buzzer is a passive piezo on a PWM-capable pin.
type Buzzer struct {
	pin gpio.PinOut
}

func NewBuzzer(pin gpio.PinOut) (*Buzzer, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("buzzer %s: %w", pin, err)
	}
	return &Buzzer{pin: pin}, nil
}

// Play drives a 50% square wave at frequencyHz for d, then silences the pin.
// Non-positive frequencies are silence.
func (bz *Buzzer) Play(ctx context.Context, frequencyHz int, d time.Duration) error {
	if frequencyHz > 0 {
		if err := bz.pin.PWM(gpio.DutyHalf, physic.Frequency(frequencyHz)*physic.Hertz); err != nil {
			return fmt.Errorf("buzzer pwm %d Hz: %w", frequencyHz, err)
		}
	}

	t := time.NewTimer(d)
	defer t.Stop()
	var err error
	select {
	case <-t.C:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if offErr := bz.pin.Out(gpio.Low); offErr != nil && err == nil {
		err = fmt.Errorf("buzzer off: %w", offErr)
	}
	return err
}
