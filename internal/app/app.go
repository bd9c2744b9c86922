package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"cloudpico-station/internal/actuation"
	"cloudpico-station/internal/alert"
	"cloudpico-station/internal/calibration"
	"cloudpico-station/internal/clock"
	"cloudpico-station/internal/config"
	"cloudpico-station/internal/fusion"
	"cloudpico-station/internal/hardware"
	"cloudpico-station/internal/history"
	"cloudpico-station/internal/httpapi"
	"cloudpico-station/internal/input"
	"cloudpico-station/internal/metrics"
	"cloudpico-station/internal/mqtt"
	"cloudpico-station/internal/threshold"
	"cloudpico-station/internal/types"
)

const shutdownTimeout = 10 * time.Second

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"hardwareBackend", cfg.HardwareBackend,
		"thresholdProfile", cfg.ThresholdProfile,
		"sampleInterval", cfg.SampleInterval,
		"loopInterval", cfg.LoopInterval,
		"stationID", cfg.DeviceStationID,
		"mqttEnabled", cfg.MQTTEnabled,
		"historyEnabled", cfg.HistoryEnabled,
		"calibrationEnabled", cfg.CalibrationEnabled,
	)
	logger := slog.Default()

	profile, err := threshold.ByName(cfg.ThresholdProfile)
	if err != nil {
		return err
	}

	devices, err := hardware.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := devices.Close(); err != nil {
			slog.Error("hardware close", "error", err)
		}
	}()

	m := metrics.New(cfg.DeviceStationID)

	if err := actuation.DrawBoot(devices.Display); err != nil {
		slog.Warn("boot screen", "error", err)
	}
	network, ln := bringUpNetwork(cfg)
	m.SetNetworkConnected(network.Connected)
	if err := actuation.DrawBootResult(devices.Display, network); err != nil {
		slog.Warn("boot screen", "error", err)
	}

	var repo *history.Repository
	if cfg.HistoryEnabled {
		repo, err = history.Open(ctx, cfg.HistoryDSN, cfg.HistoryMaxRows, logger)
		if err != nil {
			slog.Warn("history unavailable (continuing without history)", "error", err)
			repo = nil
		} else {
			defer func() {
				if err := repo.Close(); err != nil {
					slog.Error("history close", "error", err)
				}
			}()
		}
	}

	notifiers := []alert.Notifier{m}
	var forwarder *mqtt.Forwarder
	if cfg.MQTTEnabled && network.Connected {
		client := mqtt.NewClient(cfg, logger)
		go func() {
			if err := client.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("mqtt connect failed", "error", err)
			}
		}()
		defer client.Disconnect()

		forwarder = mqtt.NewForwarder(client, cfg.DeviceStationID, mqtt.DefaultQueueSize, m.ForwardDropped, logger)
		go forwarder.Run(ctx)
		notifiers = append(notifiers, forwarder)
	}
	if repo != nil {
		notifiers = append(notifiers, &historyNotifier{
			repo:      repo,
			stationID: cfg.DeviceStationID,
			now:       time.Now,
			onError:   m.HistoryError,
			logger:    logger,
		})
	}

	offsets := calibration.NewStore()
	latest := &Latest{}

	engine := fusion.NewEngine(devices.Pressure, devices.Humidity, logger)
	engine.SetErrorObserver(m)

	clk := clock.New()
	debouncer := input.NewDebouncer(cfg.DebounceInterval)
	go devices.Buttons.Run(ctx, func(b input.Button) {
		debouncer.Edge(b, clk.Millis())
	})
	if cfg.HardwareBackend == config.BackendSim {
		slog.Info("sim buttons: type a or b on stdin")
		go readSimKeys(ctx, os.Stdin, devices.Press, logger)
	}

	deps := LoopDeps{
		Clock:         clk,
		Buttons:       debouncer,
		Tone:          devices.Buzzer,
		Engine:        engine,
		Offsets:       offsets,
		Latest:        latest,
		Fanout:        actuation.NewFanout(devices.Display, devices.Matrix, devices.LED, profile, logger),
		Alerts:        alert.NewSequencer(devices.Buzzer, cfg.AlertCooldown, notifiers...),
		Observer:      m,
		OnRecordError: m.HistoryError,
		StationID:     cfg.DeviceStationID,
		Logger:        logger,
	}
	if repo != nil {
		deps.Recorder = repo
	}
	if forwarder != nil {
		deps.Forwarder = forwarder
	}
	loop := NewLoop(deps, cfg.LoopInterval, cfg.SampleInterval, network)

	var srv *http.Server
	errCh := make(chan error, 1)
	if ln != nil {
		var hist httpapi.HistoryReader
		if repo != nil {
			hist = repo
		}
		var store httpapi.OffsetStore
		if cfg.CalibrationEnabled {
			store = offsets
		}
		router, err := httpapi.NewRouter(httpapi.Deps{
			Latest:   latest,
			Offsets:  store,
			History:  hist,
			Metrics:  m.Handler(),
			Duration: m.HTTPDuration(),
			Limiter:  httpapi.NewRateLimiter(cfg.HTTPRate, cfg.HTTPBurst, m.RateLimited),
			Logger:   logger,
		})
		if err != nil {
			_ = ln.Close()
			return err
		}
		srv = httpapi.NewServer(cfg.HTTPAddr, router)
		limited := httpapi.NewLimitListener(ln, cfg.HTTPMaxConns, m.ConnectionDropped, logger)
		go func() {
			slog.Info("http listening", "addr", ln.Addr().String(), "maxConns", cfg.HTTPMaxConns)
			err := srv.Serve(limited)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				// The listener is gone: keep sensing as an offline station.
				slog.Error("http server stopped (continuing offline)", "error", err)
				loop.SetNetwork(types.NetworkStatus{Port: network.Port})
				m.SetNetworkConnected(false)
			}
			errCh <- err
		}()
	}

	slog.Info("station running", "connected", network.Connected, "address", network.Address)
	err = loop.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		slog.Info("http shutting down")
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			return shutdownErr
		}
		if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Debug("http server had stopped earlier", "error", serveErr)
		}
	}

	return err
}

// bringUpNetwork finds the station's address and opens the HTTP listener. Any
// failure leaves the station offline with a nil listener. An HTTP_ADDR bound
// to a specific IP is the address shown.
func bringUpNetwork(cfg config.Config) (types.NetworkStatus, net.Listener) {
	status := types.NetworkStatus{Port: cfg.HTTPPort()}

	addr, err := listenAddress(cfg)
	if err != nil {
		slog.Warn("no network address (continuing as offline station)", "error", err)
		return status, nil
	}
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		slog.Warn("http listen failed (continuing as offline station)", "addr", cfg.HTTPAddr, "error", err)
		return status, nil
	}

	status.Connected = true
	status.Address = addr
	return status, ln
}

func listenAddress(cfg config.Config) (string, error) {
	if host, _, err := net.SplitHostPort(cfg.HTTPAddr); err == nil {
		if ip := net.ParseIP(host); ip != nil && !ip.IsUnspecified() {
			return ip.String(), nil
		}
	}
	return hardware.LocalIPv4(cfg.NetInterface)
}

// historyNotifier stores every fired alert.
type historyNotifier struct {
	repo      *history.Repository
	stationID string
	now       func() time.Time
	onError   func()
	logger    *slog.Logger
}

func (h *historyNotifier) AlertFired(r types.Reading) {
	e := types.AlertEvent{
		StationID:    h.stationID,
		Timestamp:    h.now(),
		TemperatureC: r.TemperatureC,
		HumidityPct:  r.HumidityPct,
	}
	if err := h.repo.AppendAlert(context.Background(), e); err != nil {
		h.logger.Warn("alert not stored", "error", err)
		if h.onError != nil {
			h.onError()
		}
	}
}
