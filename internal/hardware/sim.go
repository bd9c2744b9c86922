package hardware

import (
	"image"
	"io"
	"math"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"cloudpico-station/internal/config"
	"cloudpico-station/internal/fusion"
	"cloudpico-station/internal/input"
)

// simPeriod is the number of reads in one full cycle of the simulated weather.
const simPeriod = 120

// SimSensor produces a slow, repeatable drift around indoor conditions. The
// n-th read always returns the same values.
type SimSensor struct {
	mu sync.Mutex
	n  int
}

func (s *SimSensor) phase() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := 2 * math.Pi * float64(s.n%simPeriod) / simPeriod
	s.n++
	return p
}

func (s *SimSensor) ReadPressure() (fusion.PressureSample, error) {
	p := s.phase()
	return fusion.PressureSample{
		TemperatureC: 23 + 1.5*math.Sin(p),
		PressurePa:   101325 + 150*math.Sin(p),
	}, nil
}

func (s *SimSensor) ReadHumidity() (fusion.HumiditySample, error) {
	p := s.phase()
	return fusion.HumiditySample{
		TemperatureC: 23.4 + 1.5*math.Sin(p),
		HumidityPct:  55 + 5*math.Cos(p),
	}, nil
}

// simScreen accepts frames and drops them.
type simScreen struct{}

func (simScreen) Draw(image.Rectangle, image.Image, image.Point) error { return nil }

// simPins backs the GPIO devices with in-memory pins. Button pins accept
// edges sent on their channels.
type simPins struct {
	buttons map[input.Button]*gpiotest.Pin
	red     *gpiotest.Pin
	green   *gpiotest.Pin
	blue    *gpiotest.Pin
	buzzer  *gpiotest.Pin
}

func newSimPins(p config.Pins) *simPins {
	button := func(name string) *gpiotest.Pin {
		return &gpiotest.Pin{N: name, L: gpio.High, EdgesChan: make(chan gpio.Level, 4)}
	}
	return &simPins{
		buttons: map[input.Button]*gpiotest.Pin{
			input.ButtonA: button(p.ButtonA),
			input.ButtonB: button(p.ButtonB),
		},
		red:    &gpiotest.Pin{N: p.LEDRed},
		green:  &gpiotest.Pin{N: p.LEDGreen},
		blue:   &gpiotest.Pin{N: p.LEDBlue},
		buzzer: &gpiotest.Pin{N: p.Buzzer},
	}
}

// press injects one falling edge on b. It reports false when the pin's edge
// buffer is full.
func (sp *simPins) press(b input.Button) bool {
	pin, ok := sp.buttons[b]
	if !ok {
		return false
	}
	select {
	case pin.EdgesChan <- gpio.Low:
		return true
	default:
		return false
	}
}

func simMatrix() *Matrix {
	return NewMatrix(io.Discard)
}
