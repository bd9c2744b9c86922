package threshold

import (
	"fmt"
	"math"

	"cloudpico-station/internal/types"
)

// Band maps a value to a Status. Critical is checked before Warning, so a
// value outside both ranges is Critical. Both comparisons are strict: a value
// equal to a limit belongs to the tighter band.
type Band struct {
	CriticalLow  float64
	CriticalHigh float64
	WarningLow   float64
	WarningHigh  float64
}

func (b Band) Evaluate(v float64) types.Status {
	if v < b.CriticalLow || v > b.CriticalHigh {
		return types.StatusCritical
	}
	if v < b.WarningLow || v > b.WarningHigh {
		return types.StatusWarning
	}
	return types.StatusGood
}

// Profile holds the bands for every metric. Pressure is in kPa.
type Profile struct {
	Name        string
	Temperature Band
	Humidity    Band
	PressureKPa Band
	Altitude    Band
}

const (
	ProfileWide   = "wide"
	ProfileNarrow = "narrow"
)

var (
	humidityBand = Band{CriticalLow: 30, CriticalHigh: 80, WarningLow: 40, WarningHigh: 70}
	pressureBand = Band{CriticalLow: 95, CriticalHigh: 105, WarningLow: 98, WarningHigh: 102}
	altitudeBand = Band{
		CriticalLow:  math.Inf(-1),
		CriticalHigh: 1000,
		WarningLow:   math.Inf(-1),
		WarningHigh:  500,
	}
)

// Wide is critical outside [10, 40] °C and warns above 35 °C.
var Wide = Profile{
	Name:        ProfileWide,
	Temperature: Band{CriticalLow: 10, CriticalHigh: 40, WarningLow: 10, WarningHigh: 35},
	Humidity:    humidityBand,
	PressureKPa: pressureBand,
	Altitude:    altitudeBand,
}

// Narrow is critical outside [10, 35] °C and warns outside [15, 30] °C.
var Narrow = Profile{
	Name:        ProfileNarrow,
	Temperature: Band{CriticalLow: 10, CriticalHigh: 35, WarningLow: 15, WarningHigh: 30},
	Humidity:    humidityBand,
	PressureKPa: pressureBand,
	Altitude:    altitudeBand,
}

// ByName returns the named profile.
func ByName(name string) (Profile, error) {
	switch name {
	case ProfileWide:
		return Wide, nil
	case ProfileNarrow:
		return Narrow, nil
	default:
		return Profile{}, fmt.Errorf("unknown threshold profile %q (allowed: %s, %s)", name, ProfileWide, ProfileNarrow)
	}
}

// Evaluate returns the status of metric m in reading r.
func (p Profile) Evaluate(m types.Metric, r types.Reading) types.Status {
	switch m {
	case types.MetricTemperature:
		return p.Temperature.Evaluate(r.TemperatureC)
	case types.MetricHumidity:
		return p.Humidity.Evaluate(r.HumidityPct)
	case types.MetricPressure:
		return p.PressureKPa.Evaluate(r.PressureKPa())
	case types.MetricAltitude:
		return p.Altitude.Evaluate(r.AltitudeM)
	default:
		return types.StatusGood
	}
}
