// internal/ratelimit/limiter.go
//
// Per-caller request throttling for session-mutating operations.
// Sliding fixed window: the first request from a key opens a window of
// length W with count 1; further requests inside the window increment the
// count and are rejected past the cap; a request observed after the
// window's reset time starts a fresh window.
//
// This is advisory throttling, not a security boundary. Rejections are
// surfaced to the caller as a distinct error kind by the session layer.

package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter tracks one window per key. Keys are connection ids on the push
// channel and caller identities on the poll channel. Push keys are
// discarded with Forget on disconnect; poll keys have no disconnect, so
// Prune reclaims lapsed windows on the collector's schedule.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	length  time.Duration
	cap     int
	now     func() time.Time // injectable for tests
}

// New constructs a Limiter with the given window length and request cap.
func New(length time.Duration, cap int) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		length:  length,
		cap:     cap,
		now:     time.Now,
	}
}

// Allow records one request for key and reports whether it is within the
// current window's cap.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.length)}
		return true
	}
	w.count++
	return w.count <= l.cap
}

// Forget discards key's window. Idempotent; called when the owning
// connection closes.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Prune drops every window whose reset time has passed. HTTP callers have
// no disconnect to trigger Forget, so the garbage collector calls this
// each sweep to keep the map bounded by active callers.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	dropped := 0
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of tracked windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// SetClock overrides the time source. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
