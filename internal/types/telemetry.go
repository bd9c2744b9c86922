package types

import "time"

// Telemetry represents a telemetry message from a weather station
type Telemetry struct {
	StationID   string    `json:"station_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Pressure    *float64  `json:"pressure_hpa,omitempty"`
	Altitude    *float64  `json:"altitude_m,omitempty"`
	Sequence    *int      `json:"sequence,omitempty"`
	Degraded    bool      `json:"degraded,omitempty"`
}

// NewTelemetry builds the outbound message for a reading. Pressure is sent in
// hPa to stay compatible with the rest of the station fleet.
func NewTelemetry(stationID string, ts time.Time, seq int, r Reading) Telemetry {
	temperature := r.TemperatureC
	humidity := r.HumidityPct
	pressure := r.PressurePa / 100.0
	altitude := r.AltitudeM
	return Telemetry{
		StationID:   stationID,
		Timestamp:   ts,
		Temperature: &temperature,
		Humidity:    &humidity,
		Pressure:    &pressure,
		Altitude:    &altitude,
		Sequence:    &seq,
		Degraded:    r.Degraded(),
	}
}

// StationHealth is the retained last-seen state of a station.
type StationHealth struct {
	StationID string    `json:"station_id"`
	LastSeen  time.Time `json:"last_seen"`
	Healthy   bool      `json:"healthy"`
}

// AlertEvent is published when the alert sequence fires.
type AlertEvent struct {
	StationID    string    `json:"station_id"`
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
}
