// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// This is the fast path and the final fallback: the session map here is
// what the server trusts when the durable store is unreachable.
//
// Characteristics:
//   - Sessions keyed by ID in a map; chat kept as a bounded ring per scope.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/game"
)

// chatRingSize bounds retained chat lines per scope.
const chatRingSize = 100

// Memory is the map-based Store implementation.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session
	chat     map[string][]ChatMessage // scope -> oldest-first ring
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*game.Session),
		chat:     make(map[string][]ChatMessage),
	}
}

// Load looks up a session by id. The returned session is a copy.
func (m *Memory) Load(ctx context.Context, id string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s.Clone(), nil
	}
	return nil, ErrNotFound
}

// Save stores a copy of the session.
func (m *Memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Delete removes the session; missing ids are a no-op.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// ListAll returns copies of every stored session.
func (m *Memory) ListAll(ctx context.Context) ([]*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*game.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}

// AppendChat pushes the message onto its scope's ring, evicting the
// oldest line past the ring bound.
func (m *Memory) AppendChat(ctx context.Context, msg ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ring := append(m.chat[msg.Scope], msg)
	if len(ring) > chatRingSize {
		ring = ring[len(ring)-chatRingSize:]
	}
	m.chat[msg.Scope] = ring
	return nil
}

// ChatHistory returns up to limit most recent messages, oldest first.
func (m *Memory) ChatHistory(ctx context.Context, scope string, limit int) ([]ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ring := m.chat[scope]
	if limit > 0 && len(ring) > limit {
		ring = ring[len(ring)-limit:]
	}
	return append([]ChatMessage(nil), ring...), nil
}

// PurgeChatBefore drops messages older than t from every scope.
func (m *Memory) PurgeChatBefore(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for scope, ring := range m.chat {
		i := 0
		for ; i < len(ring); i++ {
			if !ring[i].CreatedAt.Before(t) {
				break
			}
		}
		if i == len(ring) {
			delete(m.chat, scope)
			continue
		}
		if i > 0 {
			m.chat[scope] = append([]ChatMessage(nil), ring[i:]...)
		}
	}
	return nil
}

var _ Store = (*Memory)(nil)
