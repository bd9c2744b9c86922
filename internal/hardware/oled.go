package hardware

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Screen is where a Canvas sends its frame.
type Screen interface {
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Canvas draws text and lines into a 1-bit frame buffer and pushes the whole
// frame on Flush.
type Canvas struct {
	screen Screen
	img    *image1bit.VerticalLSB
	face   font.Face
	ascent int
}

func NewCanvas(screen Screen, bounds image.Rectangle) *Canvas {
	face := basicfont.Face7x13
	return &Canvas{
		screen: screen,
		img:    image1bit.NewVerticalLSB(bounds),
		face:   face,
		ascent: face.Metrics().Ascent.Ceil() - 2,
	}
}

// NewOLED opens the SSD1306 128x64 panel at its fixed address 0x3C.
func NewOLED(bus i2c.Bus) (*Canvas, *ssd1306.Dev, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("ssd1306.NewI2C: %w", err)
	}
	return NewCanvas(dev, dev.Bounds()), dev, nil
}

func (c *Canvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)
}

// DrawText places s with its top-left corner at (x, y).
func (c *Canvas) DrawText(x, y int, s string) {
	d := font.Drawer{
		Dst:  c.img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: c.face,
		Dot:  fixed.P(x, y+c.ascent),
	}
	d.DrawString(s)
}

func (c *Canvas) DrawRect(x, y, w, h int) {
	c.DrawLine(x, y, x+w-1, y)
	c.DrawLine(x, y+h-1, x+w-1, y+h-1)
	c.DrawLine(x, y, x, y+h-1)
	c.DrawLine(x+w-1, y, x+w-1, y+h-1)
}

// DrawLine uses Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *Canvas) set(x, y int) {
	if !(image.Point{X: x, Y: y}).In(c.img.Bounds()) {
		return
	}
	c.img.SetBit(x, y, image1bit.On)
}

func (c *Canvas) Flush() error {
	return c.screen.Draw(c.img.Bounds(), c.img, image.Point{})
}

// lit reports whether pixel (x, y) is on in the pending frame.
func (c *Canvas) lit(x, y int) bool {
	return bool(c.img.BitAt(x, y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
