// internal/store/fallback.go
//
// Composite Store implementing the dual-backend policy:
//   - Writes always land in memory, then attempt the durable store under
//     a call timeout; a durable failure is logged at Warn and otherwise
//     swallowed; availability over durability.
//   - Reads try the durable store under the same timeout and fall back to
//     memory. When both backends answer, the newer UpdatedAt wins (memory
//     on ties), so state written during a durable outage is never shadowed
//     by a stale row after the store comes back.
//
// The process tolerates total loss of the durable backend for the length
// of an outage, at the cost of losing state written in that window across
// a restart.

package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/game"
)

// DefaultCallTimeout bounds each durable-store call.
const DefaultCallTimeout = 2 * time.Second

// Fallback composes a durable Store with the in-memory one. durable may
// be nil, which degrades to memory-only operation (no database
// configured).
type Fallback struct {
	durable Store
	memory  *Memory
	timeout time.Duration
}

// NewFallback builds the composite. timeout <= 0 uses DefaultCallTimeout.
func NewFallback(durable Store, memory *Memory, timeout time.Duration) *Fallback {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Fallback{durable: durable, memory: memory, timeout: timeout}
}

// Load prefers the durable backend; memory answers when the durable call
// fails or holds an older copy.
func (f *Fallback) Load(ctx context.Context, id string) (*game.Session, error) {
	mem, memErr := f.memory.Load(ctx, id)
	if f.durable == nil {
		return mem, memErr
	}

	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	dur, durErr := f.durable.Load(dctx, id)
	switch {
	case durErr == nil && memErr != nil:
		// Memory lost it (restart); repopulate the fast path.
		_ = f.memory.Save(ctx, dur)
		return dur, nil
	case durErr == nil && memErr == nil:
		if dur.UpdatedAt.After(mem.UpdatedAt) {
			_ = f.memory.Save(ctx, dur)
			return dur, nil
		}
		return mem, nil
	case durErr == ErrNotFound && memErr != nil:
		return nil, ErrNotFound
	default:
		if durErr != ErrNotFound {
			log.Warn().Err(durErr).Str("gameId", id).Msg("durable load failed, serving from memory")
		}
		return mem, memErr
	}
}

// Save writes through: memory always, durable best-effort.
func (f *Fallback) Save(ctx context.Context, s *game.Session) error {
	if err := f.memory.Save(ctx, s); err != nil {
		return err
	}
	if f.durable == nil {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.durable.Save(dctx, s); err != nil {
		log.Warn().Err(err).Str("gameId", s.ID).Msg("durable save failed, memory copy is authoritative")
	}
	return nil
}

// Delete removes from both backends; a durable failure is logged only.
func (f *Fallback) Delete(ctx context.Context, id string) error {
	if err := f.memory.Delete(ctx, id); err != nil {
		return err
	}
	if f.durable == nil {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.durable.Delete(dctx, id); err != nil {
		log.Warn().Err(err).Str("gameId", id).Msg("durable delete failed")
	}
	return nil
}

// ListAll merges both backends, newer UpdatedAt winning per id.
func (f *Fallback) ListAll(ctx context.Context) ([]*game.Session, error) {
	mem, err := f.memory.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if f.durable == nil {
		return mem, nil
	}

	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	dur, durErr := f.durable.ListAll(dctx)
	if durErr != nil {
		log.Warn().Err(durErr).Msg("durable list failed, serving from memory")
		return mem, nil
	}

	byID := make(map[string]*game.Session, len(dur)+len(mem))
	for _, s := range dur {
		byID[s.ID] = s
	}
	for _, s := range mem {
		if cur, ok := byID[s.ID]; !ok || !cur.UpdatedAt.After(s.UpdatedAt) {
			byID[s.ID] = s
		}
	}
	out := make([]*game.Session, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	return out, nil
}

// AppendChat writes through like Save.
func (f *Fallback) AppendChat(ctx context.Context, m ChatMessage) error {
	if err := f.memory.AppendChat(ctx, m); err != nil {
		return err
	}
	if f.durable == nil {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.durable.AppendChat(dctx, m); err != nil {
		log.Warn().Err(err).Str("scope", m.Scope).Msg("durable chat append failed")
	}
	return nil
}

// ChatHistory prefers the durable backend, falling back to the in-memory
// ring.
func (f *Fallback) ChatHistory(ctx context.Context, scope string, limit int) ([]ChatMessage, error) {
	if f.durable != nil {
		dctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		if out, err := f.durable.ChatHistory(dctx, scope, limit); err == nil {
			return out, nil
		} else {
			log.Warn().Err(err).Str("scope", scope).Msg("durable chat history failed, serving from memory")
		}
	}
	return f.memory.ChatHistory(ctx, scope, limit)
}

// PurgeChatBefore prunes both backends.
func (f *Fallback) PurgeChatBefore(ctx context.Context, t time.Time) error {
	_ = f.memory.PurgeChatBefore(ctx, t)
	if f.durable == nil {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.durable.PurgeChatBefore(dctx, t); err != nil {
		log.Warn().Err(err).Msg("durable chat purge failed")
	}
	return nil
}

// Reconcile re-saves memory-only sessions into the durable store. The
// garbage collector calls it each sweep so state written during an outage
// drains back once the store recovers.
func (f *Fallback) Reconcile(ctx context.Context) {
	if f.durable == nil {
		return
	}
	mem, err := f.memory.ListAll(ctx)
	if err != nil {
		return
	}
	for _, s := range mem {
		dctx, cancel := context.WithTimeout(ctx, f.timeout)
		dur, err := f.durable.Load(dctx, s.ID)
		if err == ErrNotFound || (err == nil && s.UpdatedAt.After(dur.UpdatedAt)) {
			if err := f.durable.Save(dctx, s); err != nil {
				log.Warn().Err(err).Str("gameId", s.ID).Msg("reconcile save failed")
			}
		}
		cancel()
	}
}

var _ Store = (*Fallback)(nil)
