package mqtt

import (
	"context"
	"log/slog"
	"time"

	"cloudpico-station/internal/types"
)

// Publisher is the outbound side of the broker connection.
type Publisher interface {
	PublishTelemetry(t types.Telemetry) error
	PublishStationHealth(h types.StationHealth) error
	PublishAlert(e types.AlertEvent) error
}

const DefaultQueueSize = 32

type outbound struct {
	telemetry *types.Telemetry
	alert     *types.AlertEvent
}

// Forwarder hands messages from the control loop to a publishing goroutine.
// Enqueueing never blocks; when the queue is full the message is dropped.
type Forwarder struct {
	pub       Publisher
	stationID string
	queue     chan outbound
	onDrop    func()
	logger    *slog.Logger
	now       func() time.Time
}

func NewForwarder(pub Publisher, stationID string, size int, onDrop func(), logger *slog.Logger) *Forwarder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		pub:       pub,
		stationID: stationID,
		queue:     make(chan outbound, size),
		onDrop:    onDrop,
		logger:    logger,
		now:       time.Now,
	}
}

// Telemetry queues one reading.
func (f *Forwarder) Telemetry(t types.Telemetry) bool {
	return f.enqueue(outbound{telemetry: &t})
}

// AlertFired queues an alert event for r.
func (f *Forwarder) AlertFired(r types.Reading) {
	e := types.AlertEvent{
		StationID:    f.stationID,
		Timestamp:    f.now(),
		TemperatureC: r.TemperatureC,
		HumidityPct:  r.HumidityPct,
	}
	f.enqueue(outbound{alert: &e})
}

func (f *Forwarder) enqueue(m outbound) bool {
	select {
	case f.queue <- m:
		return true
	default:
		f.onDrop()
		f.logger.Warn("mqtt forward queue full, message dropped")
		return false
	}
}

// Run publishes queued messages until ctx is done. Publish failures are
// logged and the message is discarded.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-f.queue:
			f.publish(m)
		}
	}
}

func (f *Forwarder) publish(m outbound) {
	switch {
	case m.telemetry != nil:
		if err := f.pub.PublishTelemetry(*m.telemetry); err != nil {
			f.logger.Warn("failed to publish telemetry", "error", err)
			return
		}
		health := types.StationHealth{
			StationID: f.stationID,
			LastSeen:  m.telemetry.Timestamp,
			Healthy:   !m.telemetry.Degraded,
		}
		if err := f.pub.PublishStationHealth(health); err != nil {
			f.logger.Warn("failed to publish station health", "error", err)
		}
	case m.alert != nil:
		if err := f.pub.PublishAlert(*m.alert); err != nil {
			f.logger.Warn("failed to publish alert", "error", err)
		}
	}
}
