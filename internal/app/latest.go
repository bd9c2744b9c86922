package app

import (
	"sync"

	"cloudpico-station/internal/types"
)

// Latest holds the most recent reading. The control loop replaces it once per
// sampling tick and HTTP handlers copy it out.
type Latest struct {
	mu sync.RWMutex
	r  types.Reading
}

func (l *Latest) Snapshot() types.Reading {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.r
}

func (l *Latest) Store(r types.Reading) {
	l.mu.Lock()
	l.r = r
	l.mu.Unlock()
}
