package hardware

import (
	"fmt"
	"image/color"
	"io"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"

	"cloudpico-station/internal/actuation"
)

// Matrix drives the 5x5 WS2812 matrix. Pixels are chained in raster order.
type Matrix struct {
	strip io.Writer
	buf   [actuation.MatrixPixels * 3]byte
}

func NewMatrix(strip io.Writer) *Matrix {
	return &Matrix{strip: strip}
}

// NewNRZMatrix opens the matrix on an SPI port, using MOSI as the NRZ line.
func NewNRZMatrix(port spi.Port) (*Matrix, *nrzled.Dev, error) {
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: actuation.MatrixPixels,
		Channels:  3,
		Freq:      800 * physic.KiloHertz,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("nrzled.NewSPI: %w", err)
	}
	return NewMatrix(dev), dev, nil
}

// Show writes the whole frame; pixels outside the glyph are turned off.
func (m *Matrix) Show(g actuation.Glyph, c color.RGBA) error {
	px := g.Pixels(c)
	for i, p := range px {
		m.buf[i*3] = p.R
		m.buf[i*3+1] = p.G
		m.buf[i*3+2] = p.B
	}
	if _, err := m.strip.Write(m.buf[:]); err != nil {
		return fmt.Errorf("matrix write: %w", err)
	}
	return nil
}
