// internal/game/types.go
//
// Core type definitions for a single tic-tac-toe session.
// Defines:
//   - Symbol: the mark a player writes into the board (X or O).
//   - Board: the 3x3 grid, flattened to 9 slots.
//   - Status: lifecycle phase of a session (waiting/playing/finished).
//   - Session: full state of one match.

package game

import "time"

// Symbol is a player's mark on the board. The empty string means the slot
// is free. The first player to join a session is always X, the second O.
type Symbol string

const (
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
	SymbolNone Symbol = ""
)

// Other returns the opposing symbol. Calling it on SymbolNone returns
// SymbolNone.
func (s Symbol) Other() Symbol {
	switch s {
	case SymbolX:
		return SymbolO
	case SymbolO:
		return SymbolX
	}
	return SymbolNone
}

// Board is the 3x3 grid in row-major order: slot 0 is top-left, slot 8
// bottom-right.
type Board [9]Symbol

// Status is the lifecycle phase of a session.
type Status string

const (
	StatusWaiting  Status = "waiting"  // fewer than 2 players, no moves yet
	StatusPlaying  Status = "playing"  // both seats taken, moves accepted
	StatusFinished Status = "finished" // terminal; board and winner frozen
)

// Winner sentinels. Winner otherwise holds the winning player's user id,
// or "" while the session is not finished.
const (
	WinnerDraw      = "draw"
	WinnerAbandoned = "abandoned"
)

// MaxPlayers is fixed at 2 for tic-tac-toe; the session layer enforces it
// rather than assuming it.
const MaxPlayers = 2

// Session holds the full state of one match. The session service is the
// only mutator; transports receive copies.
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Players     []string  `json:"players"` // ordered: Players[0]=X, Players[1]=O
	Board       Board     `json:"board"`
	CurrentTurn Symbol    `json:"currentTurn"`
	Status      Status    `json:"status"`
	Winner      string    `json:"winner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SymbolOf returns the symbol assigned to userID by seat order, or
// SymbolNone if userID is not seated.
func (s *Session) SymbolOf(userID string) Symbol {
	for i, p := range s.Players {
		if p != userID {
			continue
		}
		if i == 0 {
			return SymbolX
		}
		return SymbolO
	}
	return SymbolNone
}

// HasPlayer reports whether userID occupies a seat.
func (s *Session) HasPlayer(userID string) bool {
	return s.SymbolOf(userID) != SymbolNone
}

// Clone returns a deep copy safe to hand to transports while the original
// keeps mutating under its lock.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Players = append([]string(nil), s.Players...)
	return &cp
}

// Summary is the lobby-listing projection of a session.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Players   []string  `json:"players"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summarize projects the session into its lobby listing form.
func (s *Session) Summarize() Summary {
	return Summary{
		ID:        s.ID,
		Name:      s.Name,
		Players:   append([]string(nil), s.Players...),
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
	}
}
