// internal/session/gc.go
//
// Time-based garbage collection of stale sessions. Each sweep takes the
// same per-game lock as the lifecycle transitions, so an expiring
// session can never be deleted out from under an in-flight join. The
// sweep also drains memory-only sessions back into the durable store
// once it recovers from an outage.

package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/events"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/game"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/store"
)

// Sweep deletes every expired or corrupt session and reconciles the two
// store backends. Returns the number of sessions removed.
func (s *Service) Sweep(ctx context.Context, now time.Time) int {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("gc list failed")
		return 0
	}

	removed := 0
	for _, stale := range all {
		unlock := s.lockGame(stale.ID)

		// Re-load under the lock; a join or move may have just landed.
		sess, err := s.store.Load(ctx, stale.ID)
		if err == store.ErrNotFound {
			unlock()
			continue
		}
		if err != nil {
			unlock()
			log.Warn().Err(err).Str("gameId", stale.ID).Msg("gc load failed")
			continue
		}

		switch {
		case corrupt(sess):
			log.Error().Str("gameId", sess.ID).Str("status", string(sess.Status)).
				Int("players", len(sess.Players)).Msg("invariant violation, deleting session")
			s.removeLocked(ctx, sess.ID, "corrupt")
			removed++
		case expired(sess, now, s.cfg):
			if sess.Status == game.StatusPlaying {
				// The match dies with the session; tell subscribers why.
				s.bc.Publish(sess.ID, events.Envelope{
					Type:    events.TypeGameFinished,
					At:      now,
					Payload: events.GameFinished{Winner: game.WinnerAbandoned, Board: boardStrings(sess.Board)},
				})
			}
			s.removeLocked(ctx, sess.ID, "expired")
			removed++
		}
		unlock()
	}

	// Rate windows for poll callers have no disconnect to reclaim them.
	if n := s.limiter.Prune(); n > 0 {
		log.Debug().Int("windows", n).Msg("gc pruned rate windows")
	}

	s.store.Reconcile(ctx)
	return removed
}

// RunGC sweeps on a fixed interval until ctx is cancelled.
func (s *Service) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ctx, s.now()); n > 0 {
				log.Info().Int("removed", n).Msg("gc sweep")
			}
		}
	}
}

// expired applies the sweep rule: any session older than IdleTTL, a
// finished session past FinishedTTL since its last mutation, or a
// waiting session past WaitingTTL since creation.
func expired(s *game.Session, now time.Time, cfg Config) bool {
	if now.Sub(s.CreatedAt) > cfg.IdleTTL {
		return true
	}
	if s.Status == game.StatusFinished && now.Sub(s.UpdatedAt) > cfg.FinishedTTL {
		return true
	}
	if s.Status == game.StatusWaiting && now.Sub(s.CreatedAt) > cfg.WaitingTTL {
		return true
	}
	return false
}

// corrupt detects impossible states so they get culled instead of
// failing every request forever.
func corrupt(s *game.Session) bool {
	if len(s.Players) > game.MaxPlayers {
		return true
	}
	switch s.Status {
	case game.StatusWaiting, game.StatusFinished:
	case game.StatusPlaying:
		if len(s.Players) != game.MaxPlayers {
			return true
		}
	default:
		return true
	}
	return false
}
