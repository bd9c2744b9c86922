package actuation

import (
	"image/color"

	"cloudpico-station/internal/types"
)

const (
	MatrixSide   = 5
	MatrixPixels = MatrixSide * MatrixSide
)

// Glyph is a 5x5 on/off pattern in raster order.
type Glyph [MatrixPixels]bool

var (
	GlyphGood = Glyph{
		false, false, true, false, false,
		false, true, true, true, false,
		true, true, true, true, true,
		false, true, true, true, false,
		false, false, true, false, false,
	}
	GlyphWarning = Glyph{
		false, false, true, false, false,
		false, false, true, false, false,
		false, true, true, true, false,
		true, true, true, true, true,
		false, false, false, false, false,
	}
	GlyphCritical = Glyph{
		true, false, false, false, true,
		false, true, false, true, false,
		false, false, true, false, false,
		false, true, false, true, false,
		true, false, false, false, true,
	}
)

// Low-brightness colors for the matrix.
var (
	ColorGreen = color.RGBA{R: 0, G: 10, B: 0, A: 255}
	ColorAmber = color.RGBA{R: 10, G: 5, B: 0, A: 255}
	ColorRed   = color.RGBA{R: 10, G: 0, B: 0, A: 255}
	ColorOff   = color.RGBA{}
)

// GlyphFor returns the glyph and color for a status.
func GlyphFor(s types.Status) (Glyph, color.RGBA) {
	switch s {
	case types.StatusWarning:
		return GlyphWarning, ColorAmber
	case types.StatusCritical:
		return GlyphCritical, ColorRed
	default:
		return GlyphGood, ColorGreen
	}
}

// Pixels expands the glyph to one color-or-off value per element, in raster
// order.
func (g Glyph) Pixels(c color.RGBA) [MatrixPixels]color.RGBA {
	var out [MatrixPixels]color.RGBA
	for i, on := range g {
		if on {
			out[i] = c
		}
	}
	return out
}
