package hardware

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"tinygo.org/x/drivers/aht20"

	"cloudpico-station/internal/fusion"
)

// BMP280 is the barometric pressure sensor.
type BMP280 struct {
	dev *bmxx80.Dev
}

func NewBMP280(bus i2c.Bus, addr uint16) (*BMP280, error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("bmxx80.NewI2C(%#x): %w", addr, err)
	}
	return &BMP280{dev: dev}, nil
}

func (b *BMP280) ReadPressure() (fusion.PressureSample, error) {
	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return fusion.PressureSample{}, fmt.Errorf("bmp280 sense: %w", err)
	}
	return fusion.PressureSample{
		TemperatureC: env.Temperature.Celsius(),
		// env.Pressure is stored in nano Pascal.
		PressurePa: float64(env.Pressure) / float64(physic.Pascal),
	}, nil
}

func (b *BMP280) Close() error {
	return b.dev.Halt()
}

// AHT20 is the humidity and temperature sensor. The periph bus satisfies the
// driver's Tx-only bus contract directly.
type AHT20 struct {
	mu  sync.Mutex
	dev aht20.Device
}

// NewAHT20 soft-resets the sensor and runs its calibration init.
func NewAHT20(bus i2c.Bus, addr uint16) *AHT20 {
	dev := aht20.New(bus)
	dev.Address = addr
	dev.Reset()
	dev.Configure()
	return &AHT20{dev: dev}
}

func (a *AHT20) ReadHumidity() (fusion.HumiditySample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.dev.Read(); err != nil {
		return fusion.HumiditySample{}, fmt.Errorf("aht20 read: %w", err)
	}
	return fusion.HumiditySample{
		TemperatureC: float64(a.dev.Celsius()),
		HumidityPct:  float64(a.dev.RelHumidity()),
	}, nil
}

var errSensorAbsent = errors.New("sensor not present")

// absentSensor stands in for a sensor that failed to come up, so the fusion
// engine keeps reporting it as stale.
type absentSensor struct{ name string }

func (s absentSensor) ReadPressure() (fusion.PressureSample, error) {
	return fusion.PressureSample{}, fmt.Errorf("%s: %w", s.name, errSensorAbsent)
}

func (s absentSensor) ReadHumidity() (fusion.HumiditySample, error) {
	return fusion.HumiditySample{}, fmt.Errorf("%s: %w", s.name, errSensorAbsent)
}
