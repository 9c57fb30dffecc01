// internal/ws/protocol.go
//
// Wire protocol for the push channel. Requests are envelopes with a type
// and a raw payload; responses and broadcast events share the same
// outer shape so clients switch on a single "type" field. The dispatch
// below calls the exact same session service operations as the HTTP
// transport, so the state machine lives in one place.

package ws

import (
	"encoding/json"
	"time"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/events"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/session"
)

// request is one inbound client envelope.
type request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound request types.
const (
	reqCreateGame  = "create_game"
	reqJoinGame    = "join_game"
	reqMakeMove    = "make_move"
	reqLeaveGame   = "leave_game"
	reqListGames   = "list_games"
	reqGetState    = "get_state"
	reqEventsSince = "events_since"
	reqSendChat    = "send_chat"
	reqChatHistory = "chat_history"
)

type createGamePayload struct {
	Name string `json:"name"`
}
type gameRefPayload struct {
	GameID string `json:"gameId"`
}
type movePayload struct {
	GameID string `json:"gameId"`
	Slot   int    `json:"slot"`
}
type eventsSincePayload struct {
	GameID string    `json:"gameId"`
	Since  time.Time `json:"since"`
}
type chatPayload struct {
	Scope string `json:"scope"`
	Text  string `json:"text"`
}
type chatHistoryPayload struct {
	Scope string `json:"scope"`
	Limit int    `json:"limit"`
}

// dispatch routes one request through rate limiting and the service.
func (c *Client) dispatch(req request) {
	switch req.Type {
	case reqCreateGame:
		if !c.allow(req.Type) {
			return
		}
		var p createGamePayload
		if !c.decode(req, &p) {
			return
		}
		sess, err := c.hub.svc.Create(c.ctx(), p.Name, c.userID)
		if err != nil {
			c.fail(req.Type, err)
			return
		}
		c.hub.svc.Registry().JoinGame(c.connID, sess.ID)
		c.push(marshalReply("game_state", sess))

	case reqJoinGame:
		if !c.allow(req.Type) {
			return
		}
		var p gameRefPayload
		if !c.decode(req, &p) {
			return
		}
		sess, err := c.hub.svc.Join(c.ctx(), p.GameID, c.userID)
		if err != nil {
			c.fail(req.Type, err)
			return
		}
		c.hub.svc.Registry().JoinGame(c.connID, sess.ID)
		c.push(marshalReply("game_state", sess))

	case reqMakeMove:
		if !c.allow(req.Type) {
			return
		}
		var p movePayload
		if !c.decode(req, &p) {
			return
		}
		sess, err := c.hub.svc.Move(c.ctx(), p.GameID, c.userID, p.Slot)
		if err != nil {
			c.fail(req.Type, err)
			return
		}
		c.push(marshalReply("game_state", sess))

	case reqLeaveGame:
		if !c.allow(req.Type) {
			return
		}
		var p gameRefPayload
		if !c.decode(req, &p) {
			return
		}
		sess, err := c.hub.svc.Leave(c.ctx(), p.GameID, c.userID)
		if err != nil {
			c.fail(req.Type, err)
			return
		}
		c.hub.svc.Registry().LeaveGame(c.connID)
		c.push(marshalReply("game_state", sess)) // nil when the session was deleted

	case reqListGames:
		games, err := c.hub.svc.List(c.ctx())
		if err != nil {
			c.fail(req.Type, err)
			return
		}
		c.push(marshalReply("games", games))

	case reqGetState:
		var p gameRefPayload
		if !c.decode(req, &p) {
			return
		}
		sess, err := c.hub.svc.State(c.ctx(), p.GameID)
		if err != nil {
			c.fail(req.Type, err)
			return
		}
		c.push(marshalReply("game_state", sess))

	case reqEventsSince:
		var p eventsSincePayload
		if !c.decode(req, &p) {
			return
		}
		c.push(marshalReply("events", c.hub.svc.EventsSince(p.GameID, p.Since)))

	case reqSendChat:
		if !c.allow(req.Type) {
			return
		}
		var p chatPayload
		if !c.decode(req, &p) {
			return
		}
		msg, err := c.hub.svc.SendChat(c.ctx(), p.Scope, c.userID, p.Text)
		if err != nil {
			c.fail(req.Type, err)
			return
		}
		c.push(marshalReply("chat_sent", msg))

	case reqChatHistory:
		var p chatHistoryPayload
		if !c.decode(req, &p) {
			return
		}
		msgs, err := c.hub.svc.ChatHistory(c.ctx(), p.Scope, p.Limit)
		if err != nil {
			c.fail(req.Type, err)
			return
		}
		c.push(marshalReply("chat_history", msgs))

	default:
		c.push(marshalError(req.Type, "validation", "unknown request type"))
	}
}

// allow charges the rate window; on rejection the error goes back to the
// caller only.
func (c *Client) allow(op string) bool {
	if err := c.hub.svc.Allow(c.connID); err != nil {
		c.fail(op, err)
		return false
	}
	return true
}

// decode unmarshals the payload, reporting a validation error on junk.
func (c *Client) decode(req request, into any) bool {
	if len(req.Payload) == 0 {
		req.Payload = []byte("{}")
	}
	if err := json.Unmarshal(req.Payload, into); err != nil {
		c.push(marshalError(req.Type, "validation", "invalid payload"))
		return false
	}
	return true
}

func (c *Client) fail(op string, err error) {
	c.push(marshalError(op, string(session.KindOf(err)), err.Error()))
}

// ------------------------------ encoding ------------------------------

type reply struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type wireError struct {
	Op      string `json:"op,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func marshalReply(typ string, payload any) []byte {
	b, _ := json.Marshal(reply{Type: typ, Payload: payload})
	return b
}

func marshalError(op, kind, msg string) []byte {
	b, _ := json.Marshal(reply{Type: "error", Payload: wireError{Op: op, Kind: kind, Message: msg}})
	return b
}

// marshalEvent encodes a broadcast envelope as-is; its Type field keeps
// the outer shape consistent with replies.
func marshalEvent(env events.Envelope) []byte {
	b, _ := json.Marshal(env)
	return b
}
