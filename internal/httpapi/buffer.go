package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
)

// MaxResponseBytes caps every response body.
const MaxResponseBytes = 8192

var ErrResponseTooLarge = errors.New("response exceeds buffer capacity")

// bufferedWriter collects a handler's response so it can be sent with an
// exact Content-Length, or replaced when it outgrows limit. A limit of zero
// never overflows.
type bufferedWriter struct {
	header   http.Header
	status   int
	body     bytes.Buffer
	limit    int
	overflow bool
}

func newBufferedWriter(limit int) *bufferedWriter {
	bw := &bufferedWriter{header: make(http.Header), limit: limit}
	if limit > 0 {
		bw.body.Grow(limit)
	}
	return bw
}

func (bw *bufferedWriter) Header() http.Header { return bw.header }

func (bw *bufferedWriter) WriteHeader(code int) {
	if bw.status == 0 {
		bw.status = code
	}
}

func (bw *bufferedWriter) Write(p []byte) (int, error) {
	if bw.status == 0 {
		bw.status = http.StatusOK
	}
	if bw.overflow {
		return 0, ErrResponseTooLarge
	}
	if bw.limit > 0 && bw.body.Len()+len(p) > bw.limit {
		bw.overflow = true
		return 0, ErrResponseTooLarge
	}
	return bw.body.Write(p)
}

func (bw *bufferedWriter) flushTo(w http.ResponseWriter) {
	if bw.overflow {
		msg := []byte(ErrResponseTooLarge.Error())
		h := w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Content-Length", strconv.Itoa(len(msg)))
		h.Set("Connection", "close")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(msg)
		return
	}

	h := w.Header()
	for k, v := range bw.header {
		h[k] = v
	}
	h.Set("Content-Length", strconv.Itoa(bw.body.Len()))
	h.Set("Connection", "close")
	status := bw.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(bw.body.Bytes())
}

// bounded renders next into a fixed-capacity buffer. Bodies larger than
// MaxResponseBytes become a 500.
func bounded(next http.Handler) http.Handler {
	return buffered(next, MaxResponseBytes)
}

// unbounded buffers next without a cap, only to send an exact Content-Length.
func unbounded(next http.Handler) http.Handler {
	return buffered(next, 0)
}

func buffered(next http.Handler, limit int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bw := newBufferedWriter(limit)
		next.ServeHTTP(bw, r)
		bw.flushTo(w)
	})
}

// CheckFits reports ErrResponseTooLarge when body cannot be served.
func CheckFits(body []byte) error {
	if len(body) > MaxResponseBytes {
		return ErrResponseTooLarge
	}
	return nil
}
