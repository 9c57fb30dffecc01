// internal/game/rules.go
//
// Pure rules for tic-tac-toe: move legality and terminal detection.
// Responsibilities:
//   - Validate a proposed move against a session snapshot.
//   - Detect a completed line over the 8 fixed winning lines.
//   - Detect a full board (draw).
//
// Nothing in this file mutates state or touches I/O; the session service
// owns all side effects.

package game

// MoveError is the reason a proposed move is illegal.
type MoveError string

const (
	ErrNotAPlayer     MoveError = "not a player in this game"
	ErrNotYourTurn    MoveError = "not your turn"
	ErrGameNotActive  MoveError = "game is not active"
	ErrSlotTaken      MoveError = "slot already taken"
	ErrSlotOutOfRange MoveError = "slot index out of range"
)

func (e MoveError) Error() string { return string(e) }

// lines enumerates the 8 winning lines: 3 rows, 3 columns, 2 diagonals.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// ValidateMove checks whether requesterID may write into slot. It reads
// the session snapshot only; the caller holds the session lock.
//
// Check order matters for error reporting: membership first, then phase,
// then turn, then the slot itself.
func ValidateMove(s *Session, requesterID string, slot int) error {
	sym := s.SymbolOf(requesterID)
	if sym == SymbolNone {
		return ErrNotAPlayer
	}
	if s.Status != StatusPlaying {
		return ErrGameNotActive
	}
	if sym != s.CurrentTurn {
		return ErrNotYourTurn
	}
	if slot < 0 || slot >= len(s.Board) {
		return ErrSlotOutOfRange
	}
	if s.Board[slot] != SymbolNone {
		return ErrSlotTaken
	}
	return nil
}

// WinningSymbol scans the 8 lines for three equal non-empty cells.
// Returns the symbol and true on the first completed line found.
func WinningSymbol(b Board) (Symbol, bool) {
	for _, ln := range lines {
		if b[ln[0]] != SymbolNone && b[ln[0]] == b[ln[1]] && b[ln[1]] == b[ln[2]] {
			return b[ln[0]], true
		}
	}
	return SymbolNone, false
}

// Full reports whether every slot is occupied.
func Full(b Board) bool {
	for _, c := range b {
		if c == SymbolNone {
			return false
		}
	}
	return true
}
