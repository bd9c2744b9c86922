package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"cloudpico-station/internal/calibration"
	"cloudpico-station/internal/types"
)

// Snapshotter returns the latest published reading.
type Snapshotter interface {
	Snapshot() types.Reading
}

// OffsetStore accepts a complete set of calibration offsets.
type OffsetStore interface {
	Set(o calibration.Offsets)
}

// HistoryReader lists recent readings, newest first, and counts stored alerts.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]types.Telemetry, error)
	CountAlerts(ctx context.Context) (int, error)
}

type telemetryAPI struct {
	latest  Snapshotter
	offsets OffsetStore
	history HistoryReader
	page    []byte
	logger  *slog.Logger
}

func (api *telemetryAPI) handleData(w http.ResponseWriter, r *http.Request) {
	body := AppendReading(make([]byte, 0, 64), api.latest.Snapshot())
	writeBody(w, http.StatusOK, "application/json", body)
}

func (api *telemetryAPI) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	o, err := parseOffsets(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	api.offsets.Set(o)
	api.logger.Info("offsets updated",
		"toff", o.Temperature,
		"hoff", o.Humidity,
		"poff", o.Pressure,
		"aoff", o.Altitude,
	)
	writeBody(w, http.StatusOK, "text/plain", []byte("OK"))
}

func (api *telemetryAPI) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *telemetryAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	if api.history == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := api.history.Recent(r.Context(), limit)
	if err != nil {
		api.logger.Error("failed to read history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if items == nil {
		items = []types.Telemetry{}
	}
	alerts, err := api.history.CountAlerts(r.Context())
	if err != nil {
		api.logger.Error("failed to count alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"limit":  limit,
		"items":  items,
		"alerts": alerts,
	})
}

func (api *telemetryAPI) handlePage(w http.ResponseWriter, r *http.Request) {
	writeBody(w, http.StatusOK, "text/html", api.page)
}

func parseOffsets(r *http.Request) (calibration.Offsets, error) {
	q := r.URL.Query()
	var vals [4]float64
	for i, name := range [...]string{"toff", "hoff", "poff", "aoff"} {
		s := q.Get(name)
		if s == "" {
			return calibration.Offsets{}, fmt.Errorf("missing '%s'", name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return calibration.Offsets{}, fmt.Errorf("invalid '%s' (expected number)", name)
		}
		vals[i] = v
	}
	o := calibration.Offsets{
		Temperature: vals[0],
		Humidity:    vals[1],
		Pressure:    vals[2],
		Altitude:    vals[3],
	}
	if err := o.Validate(); err != nil {
		return calibration.Offsets{}, err
	}
	return o, nil
}

func parseLimit(r *http.Request) (int, error) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, errors.New("'limit' must be > 0")
		}
		if n > 1000 {
			return 0, errors.New("'limit' must be <= 1000")
		}
		limit = n
	}
	return limit, nil
}
