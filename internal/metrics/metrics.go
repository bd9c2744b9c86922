// Package metrics exposes the station's readings and health counters to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cloudpico-station/internal/types"
)

const namespace = "station"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	pressure    prometheus.Gauge
	altitude    prometheus.Gauge
	stale       *prometheus.GaugeVec
	network     prometheus.Gauge

	sensorErrors  *prometheus.CounterVec
	alerts        prometheus.Counter
	droppedConns  prometheus.Counter
	rateLimited   *prometheus.CounterVec
	forwardDrops  prometheus.Counter
	httpDuration  *prometheus.HistogramVec
	historyErrors prometheus.Counter
}

func New(stationID string) *Metrics {
	labels := prometheus.Labels{"station": stationID}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		temperature: gauge("temperature_celsius", "Fused temperature after calibration."),
		humidity:    gauge("humidity_percent", "Relative humidity after calibration."),
		pressure:    gauge("pressure_pascals", "Barometric pressure after calibration."),
		altitude:    gauge("altitude_meters", "Altitude derived from pressure."),
		stale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sensor_stale",
			Help:        "1 while the sensor's last read failed and its previous value is reused.",
			ConstLabels: labels,
		}, []string{"sensor"}),
		network: gauge("network_connected", "1 while the station is reachable on the network."),
		sensorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sensor_errors_total",
			Help:        "Failed sensor reads.",
			ConstLabels: labels,
		}, []string{"sensor"}),
		alerts:       counter("alerts_total", "Alert sequences played."),
		droppedConns: counter("http_dropped_connections_total", "Connections closed because no connection record was free."),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_rate_limited_requests_total",
			Help:        "Requests rejected by the rate limiter.",
			ConstLabels: labels,
		}, []string{"route"}),
		forwardDrops: counter("mqtt_forward_dropped_total", "Telemetry messages dropped because the forwarder queue was full."),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "A histogram of the latency in seconds for serving requests.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"code", "method"}),
		historyErrors: counter("history_errors_total", "Failed history writes."),
	}

	m.registry.MustRegister(
		m.temperature,
		m.humidity,
		m.pressure,
		m.altitude,
		m.stale,
		m.network,
		m.sensorErrors,
		m.alerts,
		m.droppedConns,
		m.rateLimited,
		m.forwardDrops,
		m.httpDuration,
		m.historyErrors,
		collectors.NewBuildInfoCollector(),
	)

	for _, s := range []string{"pressure", "humidity"} {
		m.sensorErrors.WithLabelValues(s)
		m.stale.WithLabelValues(s).Set(0)
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// HTTPDuration is the request latency histogram for the HTTP middleware.
func (m *Metrics) HTTPDuration() prometheus.ObserverVec { return m.httpDuration }

func (m *Metrics) ObserveReading(r types.Reading) {
	if m == nil {
		return
	}
	m.temperature.Set(r.TemperatureC)
	m.humidity.Set(r.HumidityPct)
	m.pressure.Set(r.PressurePa)
	m.altitude.Set(r.AltitudeM)
	m.stale.WithLabelValues("pressure").Set(boolToFloat(r.PressureStale))
	m.stale.WithLabelValues("humidity").Set(boolToFloat(r.HumidityStale))
}

func (m *Metrics) SetNetworkConnected(connected bool) {
	if m == nil {
		return
	}
	m.network.Set(boolToFloat(connected))
}

// SensorError counts one failed read of sensor.
func (m *Metrics) SensorError(sensor string) {
	if m == nil {
		return
	}
	m.sensorErrors.WithLabelValues(sensor).Inc()
}

// AlertFired counts one played alert sequence.
func (m *Metrics) AlertFired(types.Reading) {
	if m == nil {
		return
	}
	m.alerts.Inc()
}

func (m *Metrics) ConnectionDropped() {
	if m == nil {
		return
	}
	m.droppedConns.Inc()
}

// RateLimited counts one rejected request on route, a route template.
func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

func (m *Metrics) ForwardDropped() {
	if m == nil {
		return
	}
	m.forwardDrops.Inc()
}

func (m *Metrics) HistoryError() {
	if m == nil {
		return
	}
	m.historyErrors.Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
