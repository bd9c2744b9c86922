package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"cloudpico-station/internal/calibration"
	"cloudpico-station/internal/types"
)

type fixedLatest struct {
	mu sync.Mutex
	r  types.Reading
}

func (f *fixedLatest) Snapshot() types.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.r
}

type fakeHistory struct {
	items  []types.Telemetry
	alerts int
	err    error
	limit  int
}

func (f *fakeHistory) CountAlerts(context.Context) (int, error) {
	return f.alerts, f.err
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]types.Telemetry, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var sampleReading = types.Reading{TemperatureC: 23.44, HumidityPct: 55.2, PressurePa: 101325, AltitudeM: 12.3}

func newTestRouter(t *testing.T, d Deps) http.Handler {
	t.Helper()
	if d.Latest == nil {
		d.Latest = &fixedLatest{r: sampleReading}
	}
	if d.Offsets == nil {
		d.Offsets = calibration.NewStore()
	}
	d.Logger = quietLogger
	h, err := NewRouter(d)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return h
}

func newTestServer(t *testing.T, d Deps) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(newTestRouter(t, d))
	t.Cleanup(ts.Close)
	return ts
}

func mustGetRaw(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestData_exactBody(t *testing.T) {
	ts := newTestServer(t, Deps{})

	resp, body := mustGetRaw(t, ts.Client(), ts.URL+"/d")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	want := `{"t":23.4,"h":55.2,"p":101.3,"a":12}`
	if body != want {
		t.Fatalf("body=%s want=%s", body, want)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type=%q want application/json", ct)
	}
	if resp.ContentLength != int64(len(want)) {
		t.Errorf("ContentLength=%d want=%d", resp.ContentLength, len(want))
	}
	if !resp.Close {
		t.Error("response does not close the connection")
	}
}

func TestData_prefixMatch(t *testing.T) {
	h := newTestRouter(t, Deps{})

	for _, path := range []string{"/d", "/data", "/d?x=1", "/dashboard"} {
		rec := serve(h, http.MethodGet, path)
		if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), `{"t":`) {
			t.Errorf("GET %s = %d %q, want the JSON reading", path, rec.Code, rec.Body.String())
		}
	}
}

func TestData_headers(t *testing.T) {
	h := newTestRouter(t, Deps{})

	rec := serve(h, http.MethodGet, "/d")
	if got := rec.Header().Get("Connection"); got != "close" {
		t.Errorf("Connection=%q want close", got)
	}
	if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(rec.Body.Len()) {
		t.Errorf("Content-Length=%q want %d", got, rec.Body.Len())
	}
}

func TestAppendReading(t *testing.T) {
	tests := []struct {
		name string
		r    types.Reading
		want string
	}{
		{
			name: "rounding",
			r:    types.Reading{TemperatureC: 21.05, HumidityPct: 99.96, PressurePa: 100049, AltitudeM: 104.5},
			want: `{"t":21.1,"h":100.0,"p":100.0,"a":104}`,
		},
		{
			name: "negative",
			r:    types.Reading{TemperatureC: -3.26, HumidityPct: 0, PressurePa: 95000, AltitudeM: -12.7},
			want: `{"t":-3.3,"h":0.0,"p":95.0,"a":-13}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(AppendReading(nil, tt.r)); got != tt.want {
				t.Errorf("AppendReading() = %s want %s", got, tt.want)
			}
		})
	}
}

func TestSetConfig_appliesOffsets(t *testing.T) {
	store := calibration.NewStore()
	ts := newTestServer(t, Deps{Offsets: store})

	resp, body := mustGetRaw(t, ts.Client(), ts.URL+"/set_config?toff=-1.5&hoff=2&poff=-100&aoff=10")
	if resp.StatusCode != http.StatusOK || body != "OK" {
		t.Fatalf("status=%d body=%q want 200 OK", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type=%q want text/plain", ct)
	}

	want := calibration.Offsets{Temperature: -1.5, Humidity: 2, Pressure: -100, Altitude: 10}
	if got := store.Get(); got != want {
		t.Errorf("offsets=%+v want %+v", got, want)
	}
}

func TestSetConfig_malformedLeavesStoreUntouched(t *testing.T) {
	before := calibration.Offsets{Temperature: 1, Humidity: 2, Pressure: 3, Altitude: 4}

	tests := []struct {
		name  string
		query string
	}{
		{name: "no query", query: ""},
		{name: "missing aoff", query: "?toff=1&hoff=1&poff=1"},
		{name: "not a number", query: "?toff=warm&hoff=1&poff=1&aoff=1"},
		{name: "nan", query: "?toff=NaN&hoff=1&poff=1&aoff=1"},
		{name: "inf", query: "?toff=1&hoff=1&poff=Inf&aoff=1"},
		{name: "empty value", query: "?toff=&hoff=1&poff=1&aoff=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := calibration.NewStore()
			store.Set(before)
			h := newTestRouter(t, Deps{Offsets: store})

			rec := serve(h, http.MethodGet, "/set_config"+tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d want=%d", rec.Code, http.StatusBadRequest)
			}
			if rec.Body.Len() == 0 {
				t.Error("want a reason in the body")
			}
			if got := store.Get(); got != before {
				t.Errorf("offsets=%+v want untouched %+v", got, before)
			}
		})
	}
}

// Offsets posted over HTTP must show up in the next /d once the reading is
// recomputed with them.
func TestSetConfig_thenData(t *testing.T) {
	store := calibration.NewStore()
	latest := &fixedLatest{r: types.Reading{TemperatureC: 23.0, HumidityPct: 50, PressurePa: 101325}}
	ts := newTestServer(t, Deps{Offsets: store, Latest: latest})

	if resp, _ := mustGetRaw(t, ts.Client(), ts.URL+"/set_config?toff=-2&hoff=0&poff=0&aoff=0"); resp.StatusCode != http.StatusOK {
		t.Fatalf("set_config status=%d", resp.StatusCode)
	}

	// one sensing tick later
	latest.mu.Lock()
	latest.r.TemperatureC = 23.0 + store.Get().Temperature
	latest.mu.Unlock()

	_, body := mustGetRaw(t, ts.Client(), ts.URL+"/d")
	var got map[string]float64
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["t"] != 21.0 {
		t.Errorf("t=%v want 21.0", got["t"])
	}
}

func TestStatusPage(t *testing.T) {
	ts := newTestServer(t, Deps{})

	for _, path := range []string{"/", "/index.html", "/anything/else"} {
		resp, body := mustGetRaw(t, ts.Client(), ts.URL+path)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status=%d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "text/html" {
			t.Errorf("GET %s Content-Type=%q", path, ct)
		}
		if !strings.Contains(body, "fetch('/d')") || !strings.Contains(body, "setInterval(u,2000)") {
			t.Errorf("GET %s page does not poll /d every 2000 ms", path)
		}
		if !strings.Contains(body, "/set_config?") {
			t.Errorf("GET %s page has no offset form", path)
		}
	}
}

func TestStatusPageFitsBuffer(t *testing.T) {
	if err := CheckFits(statusPage); err != nil {
		t.Fatalf("static page is %d bytes: %v", len(statusPage), err)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, Deps{})

	resp, body := mustGetRaw(t, ts.Client(), ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "ok" {
		t.Fatalf("body.status=%q want=%q", got["status"], "ok")
	}
}

func TestHistory(t *testing.T) {
	v := 21.5
	hist := &fakeHistory{alerts: 3, items: []types.Telemetry{
		{StationID: "home", Timestamp: time.Unix(2, 0).UTC(), Temperature: &v},
		{StationID: "home", Timestamp: time.Unix(1, 0).UTC(), Temperature: &v},
	}}
	ts := newTestServer(t, Deps{History: hist})

	resp, body := mustGetRaw(t, ts.Client(), ts.URL+"/history?limit=1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var got struct {
		Limit  int               `json:"limit"`
		Items  []types.Telemetry `json:"items"`
		Alerts int               `json:"alerts"`
	}
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Limit != 1 || len(got.Items) != 1 || hist.limit != 1 {
		t.Fatalf("limit=%d items=%d passed=%d want 1/1/1", got.Limit, len(got.Items), hist.limit)
	}
	if got.Alerts != 3 {
		t.Errorf("alerts=%d want 3", got.Alerts)
	}

	_, _ = mustGetRaw(t, ts.Client(), ts.URL+"/history")
	if hist.limit != 100 {
		t.Errorf("default limit=%d want 100", hist.limit)
	}
}

func TestHistory_invalidLimit(t *testing.T) {
	h := newTestRouter(t, Deps{History: &fakeHistory{}})

	for _, q := range []string{"abc", "0", "-3", "1001"} {
		rec := serve(h, http.MethodGet, "/history?limit="+q)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status=%d want=%d", q, rec.Code, http.StatusBadRequest)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, ok := body["message"]; !ok {
			t.Errorf("limit=%s expected message field, got %v", q, body)
		}
	}
}

func TestHistory_errors(t *testing.T) {
	h := newTestRouter(t, Deps{History: &fakeHistory{err: errors.New("disk gone")}})
	if rec := serve(h, http.MethodGet, "/history"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status=%d want=%d", rec.Code, http.StatusInternalServerError)
	}

	h = newTestRouter(t, Deps{})
	if rec := serve(h, http.MethodGet, "/history"); rec.Code != http.StatusNotFound {
		t.Errorf("disabled status=%d want=%d", rec.Code, http.StatusNotFound)
	}
}

func TestRouting_WrongMethod(t *testing.T) {
	h := newTestRouter(t, Deps{})

	for _, tt := range []struct{ method, path string }{
		{http.MethodPost, "/d"},
		{http.MethodPut, "/set_config"},
		{http.MethodDelete, "/"},
		{http.MethodPost, "/healthz"},
	} {
		rec := serve(h, tt.method, tt.path)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status=%d want=%d", tt.method, tt.path, rec.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "test",
	}, []string{"code", "method"})
	reg.MustRegister(duration)

	h := newTestRouter(t, Deps{
		Duration: duration,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	serve(h, http.MethodGet, "/d")
	serve(h, http.MethodGet, "/d")

	if got := testutil.CollectAndCount(duration); got != 1 {
		t.Errorf("histogram series=%d want 1", got)
	}
	rec := serve(h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_request_duration_seconds_count") {
		t.Errorf("/metrics = %d, missing histogram", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	h := newTestRouter(t, Deps{Latest: panicky{}})

	rec := serve(h, http.MethodGet, "/d")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status=%d want=%d", rec.Code, http.StatusInternalServerError)
	}
}

type panicky struct{}

func (panicky) Snapshot() types.Reading { panic("sensor cell corrupted") }

func TestSetConfig_calibrationDisabledServesPage(t *testing.T) {
	h, err := NewRouter(Deps{Latest: &fixedLatest{r: sampleReading}, Logger: quietLogger})
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/set_config?toff=1&hoff=0&poff=0&aoff=0", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want the status page", ct)
	}
}

func TestRateLimited_labelledByRoute(t *testing.T) {
	limited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "test",
	}, []string{"route"})
	h := newTestRouter(t, Deps{
		Limiter: NewRateLimiter(0.0001, 1, func(route string) { limited.WithLabelValues(route).Inc() }),
	})

	for i := 0; i < 1000; i++ {
		serve(h, http.MethodGet, "/junk-"+strconv.Itoa(i))
	}
	serve(h, http.MethodGet, "/d")
	serve(h, http.MethodGet, "/d/anything")

	if got := testutil.CollectAndCount(limited); got != 2 {
		t.Errorf("series=%d want 2 (one per route)", got)
	}
	if got := testutil.ToFloat64(limited.WithLabelValues("/")); got != 999 {
		t.Errorf("catch-all rejections=%v want 999", got)
	}
	if got := testutil.ToFloat64(limited.WithLabelValues("/d")); got != 2 {
		t.Errorf("/d rejections=%v want 2", got)
	}
}

func TestContentLength_everyRoute(t *testing.T) {
	bigMetrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, strings.Repeat("station_up 1\n", MaxResponseBytes))
	})
	ts := newTestServer(t, Deps{
		History: &fakeHistory{},
		Metrics: bigMetrics,
		Limiter: NewRateLimiter(1000, 1000, nil),
	})

	for _, path := range []string{
		"/d",
		"/set_config?toff=0&hoff=0&poff=0&aoff=0",
		"/set_config?toff=x",
		"/healthz",
		"/history",
		"/history?limit=0",
		"/metrics",
		"/",
		"/index.html",
	} {
		resp, body := mustGetRaw(t, ts.Client(), ts.URL+path)
		if resp.ContentLength != int64(len(body)) {
			t.Errorf("%s Content-Length=%d body=%d bytes", path, resp.ContentLength, len(body))
		}
		if resp.Header.Get("Connection") != "close" && !resp.Close {
			t.Errorf("%s connection kept open", path)
		}
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/d", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || resp.ContentLength != int64(len(body)) {
		t.Errorf("POST /d status=%d Content-Length=%d body=%d bytes", resp.StatusCode, resp.ContentLength, len(body))
	}

	limited := newTestServer(t, Deps{Limiter: NewRateLimiter(0.0001, 1, nil)})
	mustGetRaw(t, limited.Client(), limited.URL+"/d")
	resp, body2 := mustGetRaw(t, limited.Client(), limited.URL+"/d")
	if resp.StatusCode != http.StatusTooManyRequests || resp.ContentLength != int64(len(body2)) {
		t.Errorf("429 status=%d Content-Length=%d body=%d bytes", resp.StatusCode, resp.ContentLength, len(body2))
	}
}

func TestStatusPage_offsetFormFollowsCalibration(t *testing.T) {
	enabled := serve(newTestRouter(t, Deps{}), http.MethodGet, "/")
	if !strings.Contains(enabled.Body.String(), `<form id="f">`) {
		t.Error("offset form missing with calibration enabled")
	}

	h, err := NewRouter(Deps{Latest: &fixedLatest{r: sampleReading}, Logger: quietLogger})
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/", "/set_config?toff=1&hoff=0&poff=0&aoff=0"} {
		body := serve(h, http.MethodGet, path).Body.String()
		if strings.Contains(body, "<form") || strings.Contains(body, "Calibracao") {
			t.Errorf("%s still shows the offset form", path)
		}
		if !strings.Contains(body, "Estacao Meteorologica") {
			t.Errorf("%s is not the status page", path)
		}
	}
}

func TestWithoutCalibration(t *testing.T) {
	page := []byte("a" + calibrationStart + "form" + calibrationEnd + "b")
	if got := string(withoutCalibration(page)); got != "ab" {
		t.Errorf("withoutCalibration = %q, want %q", got, "ab")
	}
	if got := string(withoutCalibration([]byte("plain"))); got != "plain" {
		t.Errorf("page without markers changed: %q", got)
	}
}
