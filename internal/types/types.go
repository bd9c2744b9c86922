package types

// Reading is the snapshot produced by one sampling tick. It is passed by value
// so consumers never observe a partially updated reading.
type Reading struct {
	TemperatureC     float64 `json:"temperature_c"`
	HumidityPct      float64 `json:"humidity_pct"`
	PressurePa       float64 `json:"pressure_pa"`
	AltitudeM        float64 `json:"altitude_m"`
	NetworkConnected bool    `json:"network_connected"`

	// PressureStale and HumidityStale are set when the corresponding sensor
	// failed this tick and its last good sample was reused.
	PressureStale bool `json:"pressure_stale"`
	HumidityStale bool `json:"humidity_stale"`
}

// PressureKPa returns the pressure in kilopascal.
func (r Reading) PressureKPa() float64 {
	return r.PressurePa / 1000.0
}

// Degraded reports whether any channel of the reading is stale.
func (r Reading) Degraded() bool {
	return r.PressureStale || r.HumidityStale
}

type Metric int

const (
	MetricTemperature Metric = iota
	MetricHumidity
	MetricPressure
	MetricAltitude

	metricCount
)

// Metrics lists every metric in highlight order.
var Metrics = []Metric{MetricTemperature, MetricHumidity, MetricPressure, MetricAltitude}

var metricNames = [...]string{"Temperatura", "Umidade", "Pressao", "Altitude"}

// String returns the label shown in the display header.
func (m Metric) String() string {
	if m < 0 || m >= metricCount {
		return "?"
	}
	return metricNames[m]
}

// Next returns the metric after m, wrapping around after the last one.
func (m Metric) Next() Metric {
	return (m + 1) % metricCount
}

type Status int

const (
	StatusGood Status = iota
	StatusWarning
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

type Screen int

const (
	ScreenSensors Screen = iota
	ScreenNetwork
)

func (s Screen) String() string {
	if s == ScreenNetwork {
		return "network"
	}
	return "sensors"
}

// Selection is the UI state driven by the two buttons.
type Selection struct {
	Metric Metric
	Screen Screen
}

// NextMetric advances the highlighted metric (button A).
func (s *Selection) NextMetric() {
	s.Metric = s.Metric.Next()
}

// ToggleScreen flips between the sensors and network screens (button B).
func (s *Selection) ToggleScreen() {
	if s.Screen == ScreenSensors {
		s.Screen = ScreenNetwork
		return
	}
	s.Screen = ScreenSensors
}

// NetworkStatus describes what the network screen and status LED show.
type NetworkStatus struct {
	Connected bool
	Address   string
	Port      int
}
