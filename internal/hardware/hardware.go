// Package hardware binds the station's sensors, display, LED matrix, status
// LED, buzzer and buttons to periph.io drivers, or to in-process simulations
// when no devices are attached.
package hardware

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"cloudpico-station/internal/config"
	"cloudpico-station/internal/fusion"
	"cloudpico-station/internal/input"
)

// DisplayBounds is the SSD1306 panel size.
var DisplayBounds = image.Rect(0, 0, 128, 64)

// Devices is every peripheral the station drives.
type Devices struct {
	Pressure fusion.PressureSource
	Humidity fusion.HumiditySource
	Display  *Canvas
	Matrix   *Matrix
	LED      *RGBLED
	Buzzer   *Buzzer
	Buttons  *Buttons

	sim     *simPins
	closers []func() error
}

// Open brings up the backend named in cfg. A sensor that fails to initialize
// is replaced by one that always errors, so sampling reports it stale. Any
// other bring-up failure is returned.
func Open(cfg config.Config, logger *slog.Logger) (*Devices, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.HardwareBackend {
	case config.BackendSim:
		return openSim(cfg, logger)
	case config.BackendPeriph:
		return openPeriph(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown hardware backend %q", cfg.HardwareBackend)
	}
}

func openSim(cfg config.Config, logger *slog.Logger) (*Devices, error) {
	pins := newSimPins(cfg.Pins)
	d := &Devices{sim: pins}

	sensor := &SimSensor{}
	d.Pressure = sensor
	d.Humidity = sensor
	d.Display = NewCanvas(simScreen{}, DisplayBounds)
	d.Matrix = simMatrix()

	if err := d.openGPIO(pins.buttons[input.ButtonA], pins.buttons[input.ButtonB],
		pins.red, pins.green, pins.blue, pins.buzzer, logger); err != nil {
		return nil, err
	}
	logger.Info("hardware opened", "backend", config.BackendSim)
	return d, nil
}

func openPeriph(cfg config.Config, logger *slog.Logger) (_ *Devices, err error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host.Init: %w", err)
	}

	d := &Devices{}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	sensorBus, err := i2creg.Open(cfg.SensorI2CBus)
	if err != nil {
		return nil, fmt.Errorf("i2creg.Open(%q): %w", cfg.SensorI2CBus, err)
	}
	d.closers = append(d.closers, sensorBus.Close)

	var displayBus i2c.Bus = sensorBus
	if cfg.DisplayI2CBus != cfg.SensorI2CBus {
		b, err := i2creg.Open(cfg.DisplayI2CBus)
		if err != nil {
			return nil, fmt.Errorf("i2creg.Open(%q): %w", cfg.DisplayI2CBus, err)
		}
		d.closers = append(d.closers, b.Close)
		displayBus = b
	}

	bmp, err := NewBMP280(sensorBus, cfg.BMP280Address)
	if err != nil {
		logger.Error("pressure sensor unavailable", "error", err)
		d.Pressure = absentSensor{name: "bmp280"}
	} else {
		d.closers = append(d.closers, bmp.Close)
		d.Pressure = bmp
	}
	d.Humidity = NewAHT20(sensorBus, cfg.AHT20Address)

	canvas, oled, err := NewOLED(displayBus)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, oled.Halt)
	d.Display = canvas

	port, err := spireg.Open(cfg.MatrixSPIPort)
	if err != nil {
		return nil, fmt.Errorf("spireg.Open(%q): %w", cfg.MatrixSPIPort, err)
	}
	d.closers = append(d.closers, port.Close)
	matrix, strip, err := NewNRZMatrix(port)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, strip.Halt)
	d.Matrix = matrix

	p := cfg.Pins
	var pins [6]gpio.PinIO
	for i, name := range []string{p.ButtonA, p.ButtonB, p.LEDRed, p.LEDGreen, p.LEDBlue, p.Buzzer} {
		if pins[i], err = pinByName(name); err != nil {
			return nil, err
		}
	}
	if err := d.openGPIO(pins[0], pins[1], pins[2], pins[3], pins[4], pins[5], logger); err != nil {
		return nil, err
	}

	logger.Info("hardware opened",
		"backend", config.BackendPeriph,
		"sensor_bus", sensorBus.String(),
		"matrix_port", port.String(),
	)
	return d, nil
}

func (d *Devices) openGPIO(a, b gpio.PinIn, red, green, blue, buzzer gpio.PinOut, logger *slog.Logger) error {
	var err error
	d.Buttons, err = NewButtons(map[input.Button]gpio.PinIn{
		input.ButtonA: a,
		input.ButtonB: b,
	}, logger)
	if err != nil {
		return err
	}
	if d.LED, err = NewRGBLED(red, green, blue); err != nil {
		return err
	}
	if d.Buzzer, err = NewBuzzer(buzzer); err != nil {
		return err
	}
	return nil
}

// Press injects a button edge on the sim backend. It reports false on any
// other backend.
func (d *Devices) Press(b input.Button) bool {
	if d.sim == nil {
		return false
	}
	return d.sim.press(b)
}

// Close releases devices in reverse order of opening.
func (d *Devices) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
