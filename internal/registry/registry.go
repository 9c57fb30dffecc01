// internal/registry/registry.go
//
// Bidirectional index of live connections: {connection -> user} and
// {connection <-> game}. Used for broadcast fan-out and for cleanup when
// a connection drops. The registry never creates or destroys sessions; it
// holds game ids as weak references only.
//
// Invariants:
//   - A connection subscribes to at most one game at a time; joining a new
//     game implicitly leaves the previous one.
//   - Unregister is idempotent: the first caller gets the connection's
//     final state back, every later caller observes a no-op. That single
//     removal path is what makes disconnect cleanup exactly-once.

package registry

import (
	"sync"
	"time"
)

// Connection is the registry's record of one physical link.
type Connection struct {
	ID        string
	UserID    string // empty until authenticated
	GameID    string // empty when not subscribed
	CreatedAt time.Time
}

// Registry owns all Connection records. All methods are safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	byGame map[string]map[string]struct{} // gameID -> set of connIDs
	byUser map[string]map[string]struct{} // userID -> set of connIDs
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		byGame: make(map[string]map[string]struct{}),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register records a new connection. userID may be empty for a link that
// has not authenticated yet; SetUser fills it in later.
func (r *Registry) Register(connID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		return
	}
	r.conns[connID] = &Connection{ID: connID, UserID: userID, CreatedAt: time.Now()}
	if userID != "" {
		r.index(r.byUser, userID, connID)
	}
}

// SetUser binds an authenticated user id to an existing connection.
func (r *Registry) SetUser(connID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok || c.UserID == userID {
		return
	}
	if c.UserID != "" {
		r.unindex(r.byUser, c.UserID, connID)
	}
	c.UserID = userID
	if userID != "" {
		r.index(r.byUser, userID, connID)
	}
}

// Unregister removes the connection and returns its final state. The
// second return is false when the connection was already gone, which
// callers use to make disconnect cleanup run exactly once.
func (r *Registry) Unregister(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, connID)
	if c.UserID != "" {
		r.unindex(r.byUser, c.UserID, connID)
	}
	if c.GameID != "" {
		r.unindex(r.byGame, c.GameID, connID)
	}
	return *c, true
}

// JoinGame subscribes the connection to gameID, implicitly leaving any
// previous subscription. Returns the previous game id ("" if none).
func (r *Registry) JoinGame(connID, gameID string) (prev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return ""
	}
	prev = c.GameID
	if prev == gameID {
		return prev
	}
	if prev != "" {
		r.unindex(r.byGame, prev, connID)
	}
	c.GameID = gameID
	if gameID != "" {
		r.index(r.byGame, gameID, connID)
	}
	return prev
}

// LeaveGame clears the connection's subscription. No-op if it was not
// subscribed.
func (r *Registry) LeaveGame(connID string) {
	r.JoinGame(connID, "")
}

// Get returns a copy of the connection record.
func (r *Registry) Get(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// SubscribersOf returns the connection ids subscribed to gameID.
func (r *Registry) SubscribersOf(gameID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return keys(r.byGame[gameID])
}

// ConnectionsOf returns the connection ids bound to userID.
func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return keys(r.byUser[userID])
}

// All returns every registered connection id (lobby-wide fan-out).
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// index/unindex maintain the secondary maps. Caller holds r.mu.

func (r *Registry) index(m map[string]map[string]struct{}, key, connID string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[connID] = struct{}{}
}

func (r *Registry) unindex(m map[string]map[string]struct{}, key, connID string) {
	if set, ok := m[key]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
