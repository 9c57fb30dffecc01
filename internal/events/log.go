// internal/events/log.go
//
// Bounded per-scope event log. Keeps the last K envelopes per scope so a
// poller that missed pushes can catch up with "events since T". The log
// is the single source for both delivery paths; it is never a durability
// mechanism; a client that outruns the ring re-fetches full state.

package events

import (
	"sync"
	"time"
)

// DefaultRetention is the per-scope ring size.
const DefaultRetention = 64

// Log retains the most recent envelopes per scope.
type Log struct {
	mu     sync.RWMutex
	scopes map[string][]Envelope
	keep   int
}

// NewLog constructs a Log retaining keep envelopes per scope. keep <= 0
// uses DefaultRetention.
func NewLog(keep int) *Log {
	if keep <= 0 {
		keep = DefaultRetention
	}
	return &Log{scopes: make(map[string][]Envelope), keep: keep}
}

// Append records env under its scope, evicting the oldest entry once the
// ring is full.
func (l *Log) Append(env Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	scope := env.Scope()
	ring := append(l.scopes[scope], env)
	if len(ring) > l.keep {
		ring = ring[len(ring)-l.keep:]
	}
	l.scopes[scope] = ring
}

// Since returns the envelopes for scope strictly after t, oldest first.
func (l *Log) Since(scope string, t time.Time) []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ring := l.scopes[scope]
	out := make([]Envelope, 0, len(ring))
	for _, env := range ring {
		if env.At.After(t) {
			out = append(out, env)
		}
	}
	return out
}

// Drop discards a scope's ring, for sessions the garbage collector
// removed.
func (l *Log) Drop(scope string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.scopes, scope)
}
