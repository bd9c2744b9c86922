package httpapi

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// LimitListener tracks one record per live connection. Connections accepted
// while max records are in use are closed without a response.
type LimitListener struct {
	net.Listener
	max    int64
	active atomic.Int64
	onDrop func()
	logger *slog.Logger
}

func NewLimitListener(l net.Listener, max int, onDrop func(), logger *slog.Logger) *LimitListener {
	if logger == nil {
		logger = slog.Default()
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	return &LimitListener{Listener: l, max: int64(max), onDrop: onDrop, logger: logger}
}

// Active returns the number of live connection records.
func (l *LimitListener) Active() int {
	return int(l.active.Load())
}

func (l *LimitListener) Accept() (net.Conn, error) {
	for {
		c, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		if l.active.Add(1) > l.max {
			l.active.Add(-1)
			l.logger.Warn("connection dropped: no free connection record",
				"remote", c.RemoteAddr().String(),
				"max", l.max,
			)
			_ = c.Close()
			l.onDrop()
			continue
		}
		return &trackedConn{Conn: c, release: func() { l.active.Add(-1) }}, nil
	}
}

type trackedConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}
