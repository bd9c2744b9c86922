package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"cloudpico-station/internal/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode JSON", "error", err)
		writeText(w, http.StatusInternalServerError, "encode failed")
		return
	}
	body = append(body, '\n')
	writeBody(w, status, "application/json; charset=utf-8", body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	writeBody(w, status, "text/plain; charset=utf-8", []byte(msg))
}

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// AppendReading appends the compact /d document for r to dst:
// temperature, humidity and pressure (kPa) to one decimal, altitude rounded.
func AppendReading(dst []byte, r types.Reading) []byte {
	dst = append(dst, `{"t":`...)
	dst = strconv.AppendFloat(dst, r.TemperatureC, 'f', 1, 64)
	dst = append(dst, `,"h":`...)
	dst = strconv.AppendFloat(dst, r.HumidityPct, 'f', 1, 64)
	dst = append(dst, `,"p":`...)
	dst = strconv.AppendFloat(dst, r.PressureKPa(), 'f', 1, 64)
	dst = append(dst, `,"a":`...)
	dst = strconv.AppendFloat(dst, r.AltitudeM, 'f', 0, 64)
	return append(dst, '}')
}
