package httpapi

import (
	"net/http"
	"time"
)

// NewServer returns a server that answers one request per connection.
func NewServer(addr string, h http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	srv.SetKeepAlivesEnabled(false)
	return srv
}
