// internal/store/store.go
//
// Persistence contract for game sessions and chat. Implementations in
// this package: memory (in-process maps), sqlite (durable), and fallback
// (composite of the two with the degradation policy described in
// fallback.go).

package store

import (
	"context"
	"errors"
	"time"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/game"
)

// ErrNotFound is returned by Load when no session exists under the id.
var ErrNotFound = errors.New("session not found")

// ChatMessage is one chat line, scoped to the lobby or to a game id.
// Append-only; pruned by count per scope and by age.
type ChatMessage struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence interface for sessions and chat.
type Store interface {
	// Load retrieves a session by id; ErrNotFound if missing.
	Load(ctx context.Context, id string) (*game.Session, error)

	// Save persists or updates a session.
	Save(ctx context.Context, s *game.Session) error

	// Delete removes a session. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id string) error

	// ListAll returns every stored session.
	ListAll(ctx context.Context) ([]*game.Session, error)

	// AppendChat records one chat message.
	AppendChat(ctx context.Context, m ChatMessage) error

	// ChatHistory returns up to limit most recent messages for scope,
	// oldest first.
	ChatHistory(ctx context.Context, scope string, limit int) ([]ChatMessage, error)

	// PurgeChatBefore drops messages created before t.
	PurgeChatBefore(ctx context.Context, t time.Time) error
}
