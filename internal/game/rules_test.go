package game

import (
	"testing"
	"time"
)

func playingSession() *Session {
	return &Session{
		ID:          "g1",
		Name:        "Room1",
		Players:     []string{"alice", "bob"},
		CurrentTurn: SymbolX,
		Status:      StatusPlaying,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestValidateMoveAccepts(t *testing.T) {
	s := playingSession()
	if err := ValidateMove(s, "alice", 4); err != nil {
		t.Fatalf("expected legal move, got %v", err)
	}
}

func TestValidateMoveRejections(t *testing.T) {
	taken := playingSession()
	taken.Board[4] = SymbolO

	waiting := playingSession()
	waiting.Status = StatusWaiting

	cases := []struct {
		name      string
		sess      *Session
		requester string
		slot      int
		want      MoveError
	}{
		{"stranger", playingSession(), "carol", 0, ErrNotAPlayer},
		{"wrong turn", playingSession(), "bob", 0, ErrNotYourTurn},
		{"not active", waiting, "alice", 0, ErrGameNotActive},
		{"slot taken", taken, "alice", 4, ErrSlotTaken},
		{"negative slot", playingSession(), "alice", -1, ErrSlotOutOfRange},
		{"slot too high", playingSession(), "alice", 9, ErrSlotOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateMove(tc.sess, tc.requester, tc.slot)
			if err != tc.want {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestWinningSymbolAllLines(t *testing.T) {
	wins := [][3]int{
		{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
		{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
		{0, 4, 8}, {2, 4, 6},
	}
	for _, ln := range wins {
		var b Board
		for _, i := range ln {
			b[i] = SymbolO
		}
		sym, ok := WinningSymbol(b)
		if !ok || sym != SymbolO {
			t.Fatalf("line %v: got (%q,%v), want (O,true)", ln, sym, ok)
		}
	}
}

func TestWinningSymbolNoFalsePositive(t *testing.T) {
	var b Board
	b[0], b[1] = SymbolX, SymbolX // two in a row is not a win
	if _, ok := WinningSymbol(b); ok {
		t.Fatal("two in a row reported as a win")
	}
	// Full board, no line: X at 0,1,5,6,8 / O at 2,3,4,7.
	draw := Board{SymbolX, SymbolX, SymbolO, SymbolO, SymbolO, SymbolX, SymbolX, SymbolO, SymbolX}
	if _, ok := WinningSymbol(draw); ok {
		t.Fatal("drawn board reported as a win")
	}
	if !Full(draw) {
		t.Fatal("expected full board")
	}
}

func TestSymbolAssignmentBySeatOrder(t *testing.T) {
	s := playingSession()
	if got := s.SymbolOf("alice"); got != SymbolX {
		t.Fatalf("first seat: got %q, want X", got)
	}
	if got := s.SymbolOf("bob"); got != SymbolO {
		t.Fatalf("second seat: got %q, want O", got)
	}
	if got := s.SymbolOf("carol"); got != SymbolNone {
		t.Fatalf("stranger: got %q, want none", got)
	}
}

func TestSymbolOther(t *testing.T) {
	if SymbolX.Other() != SymbolO || SymbolO.Other() != SymbolX {
		t.Fatal("X and O must be each other's opposite")
	}
	if SymbolNone.Other() != SymbolNone {
		t.Fatal("empty symbol has no opposite")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := playingSession()
	cp := s.Clone()
	cp.Players[0] = "mallory"
	cp.Board[0] = SymbolX
	if s.Players[0] != "alice" || s.Board[0] != SymbolNone {
		t.Fatal("clone shares state with original")
	}
}
