package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cloudpico-station/internal/actuation"
	"cloudpico-station/internal/alert"
	"cloudpico-station/internal/calibration"
	"cloudpico-station/internal/clock"
	"cloudpico-station/internal/fusion"
	"cloudpico-station/internal/input"
	"cloudpico-station/internal/types"
)

// Confirmation tones for the two buttons.
const (
	toneButtonA     = 1200
	toneButtonB     = 800
	confirmDuration = 100 * time.Millisecond
)

// TelemetryRecorder stores every sampled reading.
type TelemetryRecorder interface {
	Append(ctx context.Context, t types.Telemetry) error
}

// TelemetryForwarder ships readings off the station without blocking.
type TelemetryForwarder interface {
	Telemetry(t types.Telemetry) bool
}

// ReadingObserver sees every sampled reading.
type ReadingObserver interface {
	ObserveReading(r types.Reading)
}

// LoopDeps are the collaborators of the control loop. Recorder, Forwarder,
// Observer and OnRecordError are optional.
type LoopDeps struct {
	Clock     clock.Clock
	Buttons   *input.Debouncer
	Tone      alert.Tone
	Engine    *fusion.Engine
	Offsets   *calibration.Store
	Latest    *Latest
	Fanout    *actuation.Fanout
	Alerts    *alert.Sequencer
	Recorder  TelemetryRecorder
	Forwarder TelemetryForwarder
	Observer  ReadingObserver

	OnRecordError func()
	StationID     string
	Logger        *slog.Logger
}

// Loop is the station's control loop. Buttons are handled every iteration;
// sampling, rendering and alerting happen once per sample interval, in that
// order.
type Loop struct {
	LoopDeps

	interval    time.Duration
	sampleEvery int64
	now         func() time.Time

	mu      sync.Mutex
	network types.NetworkStatus

	sel        types.Selection
	lastSample int64
	sampled    bool
	seq        int
}

func NewLoop(d LoopDeps, interval, sampleEvery time.Duration, network types.NetworkStatus) *Loop {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Loop{
		LoopDeps:    d,
		interval:    interval,
		sampleEvery: sampleEvery.Milliseconds(),
		now:         time.Now,
		network:     network,
	}
}

// SetNetwork replaces the network status shown from the next tick on.
func (l *Loop) SetNetwork(n types.NetworkStatus) {
	l.mu.Lock()
	l.network = n
	l.mu.Unlock()
}

func (l *Loop) Network() types.NetworkStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.network
}

// Selection is the current UI state. Only call it from the loop's goroutine
// or after Run has returned.
func (l *Loop) Selection() types.Selection {
	return l.sel
}

// Run iterates every loop interval until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.Step(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step runs one loop iteration. It reports whether a sampling tick ran.
func (l *Loop) Step(ctx context.Context) bool {
	l.handleButtons(ctx)

	nowMs := l.Clock.Millis()
	if l.sampled && nowMs-l.lastSample < l.sampleEvery {
		return false
	}
	l.sampled = true
	l.lastSample = nowMs
	l.tick(ctx, nowMs)
	return true
}

func (l *Loop) handleButtons(ctx context.Context) {
	if l.Buttons.Consume(input.ButtonA) {
		l.sel.NextMetric()
		l.Logger.Debug("metric selected", "metric", l.sel.Metric.String())
		l.confirm(ctx, toneButtonA)
	}
	if l.Buttons.Consume(input.ButtonB) {
		l.sel.ToggleScreen()
		l.Logger.Debug("screen selected", "screen", l.sel.Screen.String())
		l.confirm(ctx, toneButtonB)
	}
}

func (l *Loop) confirm(ctx context.Context, hz int) {
	if err := l.Tone.Play(ctx, hz, confirmDuration); err != nil && ctx.Err() == nil {
		l.Logger.Warn("confirmation tone failed", "error", err)
	}
}

func (l *Loop) tick(ctx context.Context, nowMs int64) {
	network := l.Network()

	r := l.Engine.Sample(l.Offsets.Get())
	r.NetworkConnected = network.Connected
	l.Latest.Store(r)

	// Render logs its own failures.
	_ = l.Fanout.Render(r, l.sel, network)

	if fired, err := l.Alerts.Check(ctx, nowMs, r); err != nil && ctx.Err() == nil {
		l.Logger.Warn("alert sequence failed", "error", err)
	} else if fired {
		l.Logger.Info("alert fired",
			"temperature_c", r.TemperatureC,
			"humidity_pct", r.HumidityPct,
		)
	}

	if l.Observer != nil {
		l.Observer.ObserveReading(r)
	}
	l.record(ctx, r)
}

func (l *Loop) record(ctx context.Context, r types.Reading) {
	if l.Recorder == nil && l.Forwarder == nil {
		return
	}
	l.seq++
	t := types.NewTelemetry(l.StationID, l.now(), l.seq, r)

	if l.Recorder != nil {
		if err := l.Recorder.Append(ctx, t); err != nil {
			l.Logger.Warn("history append failed", "error", err)
			if l.OnRecordError != nil {
				l.OnRecordError()
			}
		}
	}
	if l.Forwarder != nil {
		l.Forwarder.Telemetry(t)
	}
}
