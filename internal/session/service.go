// internal/session/service.go
//
// The session lifecycle controller: single transport-agnostic owner of
// every create/join/move/leave/chat transition. Both transports (the ws
// push channel and the HTTP poll endpoints) call into this one service,
// so validation and state mutation can never diverge between them.
//
// Concurrency: every mutation on a given game runs under that game's
// keyed mutex. Mutations on different games proceed independently; there
// is no global lock across games.

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/events"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/game"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/ratelimit"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/registry"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/store"
)

// Config carries the tunables the service consumes. Zero values fall
// back to the defaults below.
type Config struct {
	ChatMaxLen  int
	NameMaxLen  int
	IdleTTL     time.Duration
	FinishedTTL time.Duration
	WaitingTTL  time.Duration
}

const (
	defaultChatMaxLen  = 500
	defaultNameMaxLen  = 64
	defaultIdleTTL     = time.Hour
	defaultFinishedTTL = 10 * time.Minute
	defaultWaitingTTL  = 30 * time.Minute
)

func (c *Config) fill() {
	if c.ChatMaxLen <= 0 {
		c.ChatMaxLen = defaultChatMaxLen
	}
	if c.NameMaxLen <= 0 {
		c.NameMaxLen = defaultNameMaxLen
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = defaultIdleTTL
	}
	if c.FinishedTTL <= 0 {
		c.FinishedTTL = defaultFinishedTTL
	}
	if c.WaitingTTL <= 0 {
		c.WaitingTTL = defaultWaitingTTL
	}
}

// StatsRecorder receives match outcomes for the account layer. Optional;
// a nil recorder drops outcomes.
type StatsRecorder interface {
	RecordResult(ctx context.Context, userID, outcome string) error // "win" | "loss" | "draw"
}

// Service orchestrates the session state machine over the dual-backend
// store and fans out events through the broadcaster.
type Service struct {
	store   *store.Fallback
	reg     *registry.Registry
	limiter *ratelimit.Limiter
	bc      *events.Broadcaster
	stats   StatsRecorder
	cfg     Config
	now     func() time.Time

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New wires the service. stats may be nil.
func New(st *store.Fallback, reg *registry.Registry, limiter *ratelimit.Limiter, bc *events.Broadcaster, stats StatsRecorder, cfg Config) *Service {
	cfg.fill()
	return &Service{
		store:   st,
		reg:     reg,
		limiter: limiter,
		bc:      bc,
		stats:   stats,
		cfg:     cfg,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Registry exposes the connection registry to the transports.
func (s *Service) Registry() *registry.Registry { return s.reg }

// Allow charges one mutating request against key's rate window. Returns
// a KindRateLimited error once the window cap is exhausted.
func (s *Service) Allow(key string) error {
	if s.limiter.Allow(key) {
		return nil
	}
	return rateLimited(errors.New("too many requests, slow down"))
}

// ----------------------------- lifecycle -----------------------------

// Create opens a new session in waiting state with the creator seated as
// X and announces it to the lobby.
func (s *Service) Create(ctx context.Context, name, userID string) (*game.Session, error) {
	if userID == "" {
		return nil, validation(errors.New("missing user id"))
	}
	name, err := game.SanitizeText(name, s.cfg.NameMaxLen)
	if err != nil {
		return nil, validation(err)
	}

	now := s.now()
	sess := &game.Session{
		ID:          newGameID(),
		Name:        name,
		Players:     []string{userID},
		CurrentTurn: game.SymbolX,
		Status:      game.StatusWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, internal(err)
	}
	log.Info().Str("gameId", sess.ID).Str("user", userID).Msg("game created")

	s.bc.PublishGlobal(events.Envelope{
		Type: events.TypeGameCreated,
		At:   now,
		Payload: events.GameCreated{
			ID:        sess.ID,
			Name:      sess.Name,
			Players:   append([]string(nil), sess.Players...),
			CreatedBy: userID,
		},
	})
	return sess.Clone(), nil
}

// Join seats userID in a waiting session. Filling the second seat starts
// the match with X to move.
func (s *Service) Join(ctx context.Context, gameID, userID string) (*game.Session, error) {
	if userID == "" {
		return nil, validation(errors.New("missing user id"))
	}
	unlock := s.lockGame(gameID)
	defer unlock()

	sess, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if sess.HasPlayer(userID) {
		return nil, conflict(errors.New("already joined"))
	}
	if sess.Status != game.StatusWaiting {
		return nil, conflict(errors.New("game already started"))
	}
	if len(sess.Players) >= game.MaxPlayers {
		return nil, conflict(errors.New("game is full"))
	}

	now := s.now()
	sess.Players = append(sess.Players, userID)
	sess.UpdatedAt = now
	started := len(sess.Players) == game.MaxPlayers
	if started {
		sess.Status = game.StatusPlaying
		sess.CurrentTurn = game.SymbolX
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, internal(err)
	}

	s.bc.Publish(gameID, events.Envelope{
		Type: events.TypePlayerJoined,
		At:   now,
		Payload: events.PlayerJoined{
			UserID:  userID,
			Symbol:  string(sess.SymbolOf(userID)),
			Players: append([]string(nil), sess.Players...),
		},
	})
	if started {
		log.Info().Str("gameId", gameID).Strs("players", sess.Players).Msg("game started")
		s.bc.Publish(gameID, events.Envelope{
			Type: events.TypeGameStarted,
			At:   now,
			Payload: events.GameStarted{
				Players:     append([]string(nil), sess.Players...),
				CurrentTurn: string(sess.CurrentTurn),
			},
		})
	}
	return sess.Clone(), nil
}

// Move writes userID's symbol into slot, evaluates the terminal
// conditions, and flips the turn when the game continues.
func (s *Service) Move(ctx context.Context, gameID, userID string, slot int) (*game.Session, error) {
	unlock := s.lockGame(gameID)
	defer unlock()

	sess, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := game.ValidateMove(sess, userID, slot); err != nil {
		if err == game.ErrSlotOutOfRange {
			return nil, validation(err)
		}
		return nil, conflict(err)
	}

	now := s.now()
	sym := sess.SymbolOf(userID)
	sess.Board[slot] = sym
	sess.UpdatedAt = now

	finished := false
	switch {
	case winsNow(sess.Board, sym):
		sess.Status = game.StatusFinished
		sess.Winner = userID
		finished = true
		s.recordOutcomes(ctx, sess, userID)
	case game.Full(sess.Board):
		sess.Status = game.StatusFinished
		sess.Winner = game.WinnerDraw
		finished = true
		s.recordOutcomes(ctx, sess, "")
	default:
		sess.CurrentTurn = sym.Other()
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, internal(err)
	}

	s.bc.Publish(gameID, events.Envelope{
		Type: events.TypeMoveMade,
		At:   now,
		Payload: events.MoveMade{
			UserID:      userID,
			Slot:        slot,
			Symbol:      string(sym),
			Board:       boardStrings(sess.Board),
			CurrentTurn: string(sess.CurrentTurn),
		},
	})
	if finished {
		log.Info().Str("gameId", gameID).Str("winner", sess.Winner).Msg("game finished")
		s.bc.Publish(gameID, events.Envelope{
			Type:    events.TypeGameFinished,
			At:      now,
			Payload: events.GameFinished{Winner: sess.Winner, Board: boardStrings(sess.Board)},
		})
	}
	return sess.Clone(), nil
}

// Leave unseats userID. An empty session is deleted outright; otherwise
// a live match is voided back to waiting with a cleared board, one
// player cannot continue alone. Finished sessions keep their terminal
// board and winner untouched.
func (s *Service) Leave(ctx context.Context, gameID, userID string) (*game.Session, error) {
	unlock := s.lockGame(gameID)
	defer unlock()

	sess, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !sess.HasPlayer(userID) {
		return nil, conflict(game.ErrNotAPlayer)
	}

	now := s.now()
	remaining := sess.Players[:0:0]
	for _, p := range sess.Players {
		if p != userID {
			remaining = append(remaining, p)
		}
	}
	sess.Players = remaining

	if len(sess.Players) == 0 {
		s.removeLocked(ctx, sess.ID, "empty")
		return nil, nil
	}

	reset := sess.Status == game.StatusPlaying
	if sess.Status != game.StatusFinished {
		sess.Status = game.StatusWaiting
		sess.Board = game.Board{}
		sess.CurrentTurn = game.SymbolX
		sess.Winner = ""
	}
	sess.UpdatedAt = now
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, internal(err)
	}
	log.Info().Str("gameId", gameID).Str("user", userID).Bool("reset", reset).Msg("player left")

	s.bc.Publish(gameID, events.Envelope{
		Type: events.TypePlayerLeft,
		At:   now,
		Payload: events.PlayerLeft{
			UserID:  userID,
			Players: append([]string(nil), sess.Players...),
			Reset:   reset,
		},
	})
	return sess.Clone(), nil
}

// Disconnect is the single cleanup path for a dropped connection. The
// registry's idempotent unregister guarantees the leave transition fires
// exactly once even when an explicit leave races the disconnect.
func (s *Service) Disconnect(ctx context.Context, connID string) {
	s.limiter.Forget(connID)
	conn, ok := s.reg.Unregister(connID)
	if !ok {
		return
	}
	if conn.GameID == "" || conn.UserID == "" {
		return
	}
	// Only unseat the player when no other connection of theirs still
	// watches the game (multi-tab reconnects).
	for _, other := range s.reg.ConnectionsOf(conn.UserID) {
		if c, ok := s.reg.Get(other); ok && c.GameID == conn.GameID {
			return
		}
	}
	if _, err := s.Leave(ctx, conn.GameID, conn.UserID); err != nil {
		if k := KindOf(err); k != KindConflict && k != KindNotFound {
			log.Warn().Err(err).Str("gameId", conn.GameID).Msg("disconnect leave failed")
		}
	}
}

// ------------------------------ queries ------------------------------

// List returns lobby summaries, oldest first.
func (s *Service) List(ctx context.Context) ([]game.Summary, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, internal(err)
	}
	out := make([]game.Summary, 0, len(all))
	for _, sess := range all {
		out = append(out, sess.Summarize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// State returns the full current session; the resync path for clients
// that missed pushes.
func (s *Service) State(ctx context.Context, gameID string) (*game.Session, error) {
	return s.load(ctx, gameID)
}

// EventsSince replays logged events for a game (or the lobby when gameID
// is empty) strictly after t.
func (s *Service) EventsSince(gameID string, t time.Time) []events.Envelope {
	scope := gameID
	if scope == "" {
		scope = events.ScopeLobby
	}
	return s.bc.Log().Since(scope, t)
}

// ------------------------------- chat --------------------------------

// SendChat validates, persists, and fans out one chat line. scope is
// "lobby" or an existing game id.
func (s *Service) SendChat(ctx context.Context, scope, userID, text string) (*store.ChatMessage, error) {
	if userID == "" {
		return nil, validation(errors.New("missing user id"))
	}
	clean, err := game.SanitizeText(text, s.cfg.ChatMaxLen)
	if err != nil {
		return nil, validation(err)
	}
	if scope == "" {
		scope = events.ScopeLobby
	}
	if scope != events.ScopeLobby {
		if _, err := s.load(ctx, scope); err != nil {
			return nil, err
		}
	}

	msg := store.ChatMessage{
		ID:        uuid.NewString(),
		Scope:     scope,
		Author:    userID,
		Text:      clean,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendChat(ctx, msg); err != nil {
		return nil, internal(err)
	}

	env := events.Envelope{
		Type: events.TypeChatMessage,
		At:   msg.CreatedAt,
		Payload: events.ChatMessage{
			ID:     msg.ID,
			Scope:  msg.Scope,
			Author: msg.Author,
			Text:   msg.Text,
		},
	}
	if scope == events.ScopeLobby {
		s.bc.PublishGlobal(env)
	} else {
		s.bc.Publish(scope, env)
	}
	return &msg, nil
}

// ChatHistory returns up to limit recent messages for scope, oldest
// first.
func (s *Service) ChatHistory(ctx context.Context, scope string, limit int) ([]store.ChatMessage, error) {
	if scope == "" {
		scope = events.ScopeLobby
	}
	msgs, err := s.store.ChatHistory(ctx, scope, limit)
	if err != nil {
		return nil, internal(err)
	}
	return msgs, nil
}

// ----------------------------- internals -----------------------------

// lockGame acquires the per-game mutex, creating it on first use.
func (s *Service) lockGame(gameID string) func() {
	s.lockMu.Lock()
	mu, ok := s.locks[gameID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[gameID] = mu
	}
	s.lockMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// load fetches a session or maps the store error into the taxonomy. A
// miss also reaps any keyed mutex minted for the id, so requests against
// made-up ids cannot grow the lock map.
func (s *Service) load(ctx context.Context, gameID string) (*game.Session, error) {
	sess, err := s.store.Load(ctx, gameID)
	if err == store.ErrNotFound {
		s.reapLock(gameID)
		return nil, notFound(errors.New("game not found"))
	}
	if err != nil {
		return nil, internal(err)
	}
	return sess, nil
}

// reapLock drops the keyed mutex for an id with no session behind it.
// Holders of the old mutex finish their (failing) lookup undisturbed.
func (s *Service) reapLock(gameID string) {
	s.lockMu.Lock()
	delete(s.locks, gameID)
	s.lockMu.Unlock()
}

// removeLocked deletes the session and its bookkeeping. Caller holds the
// game lock.
func (s *Service) removeLocked(ctx context.Context, gameID, reason string) {
	if err := s.store.Delete(ctx, gameID); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("session delete failed")
	}
	s.bc.Log().Drop(gameID)
	s.lockMu.Lock()
	delete(s.locks, gameID)
	s.lockMu.Unlock()
	log.Info().Str("gameId", gameID).Str("reason", reason).Msg("game removed")

	s.bc.PublishGlobal(events.Envelope{
		Type:    events.TypeGameRemoved,
		At:      s.now(),
		Payload: events.GameRemoved{ID: gameID, Reason: reason},
	})
}

// recordOutcomes forwards match results to the stats hook. winnerID ""
// means a draw.
func (s *Service) recordOutcomes(ctx context.Context, sess *game.Session, winnerID string) {
	if s.stats == nil {
		return
	}
	for _, p := range sess.Players {
		outcome := "draw"
		if winnerID != "" {
			outcome = "loss"
			if p == winnerID {
				outcome = "win"
			}
		}
		if err := s.stats.RecordResult(ctx, p, outcome); err != nil {
			log.Warn().Err(err).Str("user", p).Msg("record result failed")
		}
	}
}

// winsNow checks whether sym just completed a line.
func winsNow(b game.Board, sym game.Symbol) bool {
	w, ok := game.WinningSymbol(b)
	return ok && w == sym
}

func boardStrings(b game.Board) []string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = string(c)
	}
	return out
}

// newGameID returns a compact 16-hex-char identifier.
func newGameID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
