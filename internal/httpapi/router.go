package httpapi

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed static/index.html
var statusPage []byte

// Deps are the collaborators of the telemetry service. Offsets, History,
// Metrics, Duration and Limiter are optional. Without Offsets, /set_config is
// served the status page and the page has no offset form.
type Deps struct {
	Latest   Snapshotter
	Offsets  OffsetStore
	History  HistoryReader
	Metrics  http.Handler
	Duration prometheus.ObserverVec
	Limiter  *RateLimiter
	Logger   *slog.Logger
}

const (
	calibrationStart = "<!--calibration-->"
	calibrationEnd   = "<!--/calibration-->"
)

// withoutCalibration cuts the offset form out of the status page.
func withoutCalibration(page []byte) []byte {
	i := bytes.Index(page, []byte(calibrationStart))
	j := bytes.Index(page, []byte(calibrationEnd))
	if i < 0 || j < i {
		return page
	}
	out := make([]byte, 0, len(page))
	out = append(out, page[:i]...)
	return append(out, page[j+len(calibrationEnd):]...)
}

// NewRouter builds the telemetry service handler. It fails when the static
// page cannot be served from the response buffer.
func NewRouter(d Deps) (http.Handler, error) {
	if err := CheckFits(statusPage); err != nil {
		return nil, fmt.Errorf("status page (%d bytes): %w", len(statusPage), err)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	page := statusPage
	if d.Offsets == nil {
		page = withoutCalibration(statusPage)
	}

	api := &telemetryAPI{
		latest:  d.Latest,
		offsets: d.Offsets,
		history: d.History,
		page:    page,
		logger:  d.Logger,
	}

	r := mux.NewRouter()
	if d.Limiter != nil {
		r.Use(d.Limiter.Handler)
	}
	if d.Offsets != nil {
		r.Handle("/set_config", bounded(http.HandlerFunc(api.handleSetConfig))).Methods(http.MethodGet)
	}
	r.Handle("/healthz", bounded(http.HandlerFunc(api.handleHealthz))).Methods(http.MethodGet)
	r.Handle("/history", unbounded(http.HandlerFunc(api.handleHistory))).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", unbounded(d.Metrics)).Methods(http.MethodGet)
	}
	r.PathPrefix("/d").Handler(bounded(http.HandlerFunc(api.handleData))).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(bounded(http.HandlerFunc(api.handlePage))).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = bounded(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	}))

	var h http.Handler = r
	if d.Duration != nil {
		h = promhttp.InstrumentHandlerDuration(d.Duration, h)
	}
	h = requestLogger(d.Logger, h)
	h = closeConnection(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	return h, nil
}
