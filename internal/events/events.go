// internal/events/events.go
//
// Event model for the session layer. Every session mutation produces one
// event from a closed set of kinds, each with its own typed payload. The
// same envelopes feed both delivery paths: pushed to live connections and
// replayed to pollers via the bounded per-scope log ("events since T").

package events

import "time"

// Type identifies an event kind. The set is closed; transports switch on
// it exhaustively.
type Type string

const (
	TypeGameCreated  Type = "game_created"
	TypePlayerJoined Type = "player_joined"
	TypeGameStarted  Type = "game_started"
	TypeMoveMade     Type = "move_made"
	TypeGameFinished Type = "game_finished"
	TypePlayerLeft   Type = "player_left"
	TypeGameRemoved  Type = "game_removed"
	TypeChatMessage  Type = "chat_message"
)

// ScopeLobby is the log scope for lobby-wide events. Game-scoped events
// use the game id as their scope.
const ScopeLobby = "lobby"

// Envelope wraps one event for logging and delivery. GameID is empty for
// lobby-wide events. Payload is one of the typed payload structs below.
type Envelope struct {
	Type    Type      `json:"type"`
	GameID  string    `json:"gameId,omitempty"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Scope returns the log scope this envelope belongs to.
func (e Envelope) Scope() string {
	if e.GameID == "" {
		return ScopeLobby
	}
	return e.GameID
}

// Payloads, one per kind.

type GameCreated struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Players   []string `json:"players"`
	CreatedBy string   `json:"createdBy"`
}

type PlayerJoined struct {
	UserID  string   `json:"userId"`
	Symbol  string   `json:"symbol"`
	Players []string `json:"players"`
}

type GameStarted struct {
	Players     []string `json:"players"`
	CurrentTurn string   `json:"currentTurn"`
}

type MoveMade struct {
	UserID      string   `json:"userId"`
	Slot        int      `json:"slot"`
	Symbol      string   `json:"symbol"`
	Board       []string `json:"board"`
	CurrentTurn string   `json:"currentTurn"`
}

type GameFinished struct {
	Winner string   `json:"winner"`
	Board  []string `json:"board"`
}

type PlayerLeft struct {
	UserID  string   `json:"userId"`
	Players []string `json:"players"`
	Reset   bool     `json:"reset"` // true when the match was voided back to waiting
}

type GameRemoved struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"` // "empty", "expired", "corrupt"
}

type ChatMessage struct {
	ID     string `json:"id"`
	Scope  string `json:"scope"`
	Author string `json:"author"`
	Text   string `json:"text"`
}
