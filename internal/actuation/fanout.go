package actuation

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"

	"cloudpico-station/internal/threshold"
	"cloudpico-station/internal/types"
)

// Matrix shows one glyph in one color.
type Matrix interface {
	Show(g Glyph, c color.RGBA) error
}

// StatusLED is the binary network indicator.
type StatusLED interface {
	Set(c color.RGBA) error
}

// LED colors for the status indicator.
var (
	LEDGreen = color.RGBA{G: 255, A: 255}
	LEDRed   = color.RGBA{R: 255, A: 255}
)

// Fanout drives every output from one reading.
type Fanout struct {
	display Display
	matrix  Matrix
	led     StatusLED
	profile threshold.Profile
	logger  *slog.Logger
}

func NewFanout(d Display, m Matrix, led StatusLED, profile threshold.Profile, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{display: d, matrix: m, led: led, profile: profile, logger: logger}
}

// Render updates display, matrix and status LED in that order. A failing sink
// does not stop the others; the joined error is returned.
func (f *Fanout) Render(r types.Reading, sel types.Selection, net types.NetworkStatus) error {
	var errs []error

	if err := f.renderDisplay(r, sel, net); err != nil {
		errs = append(errs, fmt.Errorf("display: %w", err))
	}

	status := f.profile.Evaluate(sel.Metric, r)
	glyph, c := GlyphFor(status)
	if err := f.matrix.Show(glyph, c); err != nil {
		errs = append(errs, fmt.Errorf("matrix: %w", err))
	}

	if err := f.led.Set(StatusColor(net.Connected)); err != nil {
		errs = append(errs, fmt.Errorf("status led: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		f.logger.Warn("render failed", "error", err)
	}
	return err
}

func (f *Fanout) renderDisplay(r types.Reading, sel types.Selection, net types.NetworkStatus) error {
	if sel.Screen == types.ScreenNetwork {
		DrawNetwork(f.display, net)
	} else {
		DrawSensors(f.display, r, sel.Metric)
	}
	return f.display.Flush()
}

// StatusColor is green when connected and red otherwise.
func StatusColor(connected bool) color.RGBA {
	if connected {
		return LEDGreen
	}
	return LEDRed
}
