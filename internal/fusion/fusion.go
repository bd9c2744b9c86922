// Package fusion merges the pressure and humidity sensors into one calibrated
// Reading per tick.
package fusion

import (
	"log/slog"
	"math"

	"cloudpico-station/internal/calibration"
	"cloudpico-station/internal/types"
)

const (
	SeaLevelPressurePa = 101325.0

	altitudeScale    = 44330.0
	altitudeExponent = 0.1903
)

type PressureSample struct {
	TemperatureC float64
	PressurePa   float64
}

type HumiditySample struct {
	TemperatureC float64
	HumidityPct  float64
}

// PressureSource is the barometric sensor. The driver owns the conversion from
// raw counts to engineering units.
type PressureSource interface {
	ReadPressure() (PressureSample, error)
}

// HumiditySource is the humidity sensor. Reset and init happen when the driver
// is constructed.
type HumiditySource interface {
	ReadHumidity() (HumiditySample, error)
}

// ErrorObserver is told about every failed sensor read.
type ErrorObserver interface {
	SensorError(sensor string)
}

type Engine struct {
	pressure PressureSource
	humidity HumiditySource
	logger   *slog.Logger
	observer ErrorObserver

	lastPressure PressureSample
	lastHumidity HumiditySample
	havePressure bool
	haveHumidity bool
}

func NewEngine(pressure PressureSource, humidity HumiditySource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		pressure: pressure,
		humidity: humidity,
		logger:   logger,
	}
}

// SetErrorObserver registers o to be told about failed reads.
func (e *Engine) SetErrorObserver(o ErrorObserver) {
	e.observer = o
}

// Sample reads both sources and returns a calibrated reading. A failed source
// never aborts the tick: its last good sample is reused and the reading is
// marked stale for that channel. Offsets are applied to the raw samples on
// every call, so re-applying the same offsets never accumulates.
func (e *Engine) Sample(offsets calibration.Offsets) types.Reading {
	var r types.Reading

	if ps, err := e.pressure.ReadPressure(); err != nil {
		e.logger.Warn("pressure sensor read failed, reusing last sample", "error", err)
		e.observe("pressure")
		r.PressureStale = true
	} else {
		e.lastPressure = ps
		e.havePressure = true
	}
	if !e.havePressure {
		r.PressureStale = true
	}

	if hs, err := e.humidity.ReadHumidity(); err != nil {
		e.logger.Warn("humidity sensor read failed, reusing last sample", "error", err)
		e.observe("humidity")
		r.HumidityStale = true
	} else {
		e.lastHumidity = hs
		e.haveHumidity = true
	}
	if !e.haveHumidity {
		r.HumidityStale = true
	}

	r.TemperatureC = e.fusedTemperature() + offsets.Temperature
	r.HumidityPct = e.lastHumidity.HumidityPct + offsets.Humidity
	r.PressurePa = e.lastPressure.PressurePa + offsets.Pressure
	r.AltitudeM = Altitude(r.PressurePa) + offsets.Altitude
	return r
}

// fusedTemperature averages the two co-located sensors. Until the humidity
// sensor has delivered a sample the pressure sensor stands alone.
func (e *Engine) fusedTemperature() float64 {
	switch {
	case e.havePressure && e.haveHumidity:
		return (e.lastPressure.TemperatureC + e.lastHumidity.TemperatureC) / 2.0
	case e.haveHumidity:
		return e.lastHumidity.TemperatureC
	default:
		return e.lastPressure.TemperatureC
	}
}

func (e *Engine) observe(sensor string) {
	if e.observer != nil {
		e.observer.SensorError(sensor)
	}
}

// Altitude applies the international barometric formula with a fixed
// sea-level reference of 101325 Pa.
func Altitude(pressurePa float64) float64 {
	return altitudeScale * (1.0 - math.Pow(pressurePa/SeaLevelPressurePa, altitudeExponent))
}
