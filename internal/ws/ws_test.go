package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/events"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/ratelimit"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/registry"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/session"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/store"
)

func newTestHub(t *testing.T) (*Hub, *session.Service, *httptest.Server) {
	t.Helper()
	reg := registry.New()
	bc := events.NewBroadcaster(events.NewLog(0), reg)
	svc := session.New(
		store.NewFallback(nil, store.NewMemory(), 0),
		reg,
		ratelimit.New(time.Minute, 1000),
		bc,
		nil,
		session.Config{},
	)
	hub := NewHub(svc, func(r *http.Request) string {
		return r.Header.Get("X-Test-User")
	})
	bc.Attach(hub)
	ts := httptest.NewServer(hub.Handler())
	t.Cleanup(ts.Close)
	return hub, svc, ts
}

func dial(t *testing.T, ts *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Test-User": {user}})
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": json.RawMessage(raw)}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// recvType reads frames until one of the wanted type arrives. Broadcast
// pushes and direct replies interleave on one connection, so tests skip
// what they are not asserting on.
func recvType(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 10; i++ {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read waiting for %q: %v", typ, err)
		}
		if f.Type == typ {
			return f
		}
	}
	t.Fatalf("no %q frame within 10 messages", typ)
	return frame{}
}

func createGame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	send(t, conn, "create_game", map[string]string{"name": "Room1"})
	var state struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	f := recvType(t, conn, "game_state")
	_ = json.Unmarshal(f.Payload, &state)
	if state.ID == "" || state.Status != "waiting" {
		t.Fatalf("created state: %+v", state)
	}
	return state.ID
}

func TestCreateAndJoinOverWebsocket(t *testing.T) {
	_, _, ts := newTestHub(t)

	alice := dial(t, ts, "alice")
	gameID := createGame(t, alice)

	bob := dial(t, ts, "bob")
	send(t, bob, "join_game", map[string]string{"gameId": gameID})
	joined := recvType(t, bob, "game_state")
	var state struct {
		Status      string   `json:"status"`
		Players     []string `json:"players"`
		CurrentTurn string   `json:"currentTurn"`
	}
	_ = json.Unmarshal(joined.Payload, &state)
	if state.Status != "playing" || state.CurrentTurn != "X" {
		t.Fatalf("joined state: %+v", state)
	}

	// Alice, subscribed since create, receives the join and start pushes.
	recvType(t, alice, string(events.TypePlayerJoined))
	recvType(t, alice, string(events.TypeGameStarted))
}

func TestMoveBroadcastAndErrors(t *testing.T) {
	_, _, ts := newTestHub(t)

	alice := dial(t, ts, "alice")
	gameID := createGame(t, alice)

	bob := dial(t, ts, "bob")
	send(t, bob, "join_game", map[string]string{"gameId": gameID})
	recvType(t, bob, "game_state")

	// Bob moving out of turn gets an error frame back.
	send(t, bob, "make_move", map[string]any{"gameId": gameID, "slot": 0})
	errFrame := recvType(t, bob, "error")
	var we struct {
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal(errFrame.Payload, &we)
	if we.Kind != string(session.KindConflict) {
		t.Fatalf("kind %q, want conflict", we.Kind)
	}

	send(t, alice, "make_move", map[string]any{"gameId": gameID, "slot": 4})
	reply := recvType(t, alice, "game_state")
	var after struct {
		Board       []string `json:"board"`
		CurrentTurn string   `json:"currentTurn"`
	}
	_ = json.Unmarshal(reply.Payload, &after)
	if after.Board[4] != "X" || after.CurrentTurn != "O" {
		t.Fatalf("after move: %+v", after)
	}

	push := recvType(t, bob, string(events.TypeMoveMade))
	var mv struct {
		UserID string `json:"userId"`
		Slot   int    `json:"slot"`
	}
	_ = json.Unmarshal(push.Payload, &mv)
	if mv.UserID != "alice" || mv.Slot != 4 {
		t.Fatalf("move push: %+v", mv)
	}
}

func TestDisconnectUnseatsPlayer(t *testing.T) {
	_, svc, ts := newTestHub(t)

	alice := dial(t, ts, "alice")
	gameID := createGame(t, alice)

	bob := dial(t, ts, "bob")
	send(t, bob, "join_game", map[string]string{"gameId": gameID})
	recvType(t, bob, "game_state")

	alice.Close()

	// The read pump notices the close and runs Disconnect; poll until the
	// session resets rather than racing it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sess, err := svc.State(context.Background(), gameID)
		if err == nil && len(sess.Players) == 1 && sess.Players[0] == "bob" && sess.Status == "waiting" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never reset: %+v err=%v", sess, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownRequestType(t *testing.T) {
	_, _, ts := newTestHub(t)
	alice := dial(t, ts, "alice")
	send(t, alice, "boop", nil)
	recvType(t, alice, "error")
}

func TestListAndChatOverWebsocket(t *testing.T) {
	_, _, ts := newTestHub(t)

	alice := dial(t, ts, "alice")
	gameID := createGame(t, alice)

	send(t, alice, "send_chat", map[string]string{"scope": gameID, "text": "good luck"})
	// Subscribed to the game, alice receives the broadcast copy before the
	// direct reply: the service publishes while handling the request.
	recvType(t, alice, string(events.TypeChatMessage))
	recvType(t, alice, "chat_sent")

	send(t, alice, "list_games", nil)
	list := recvType(t, alice, "games")
	var games []struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(list.Payload, &games)
	if len(games) != 1 || games[0].ID != gameID {
		t.Fatalf("games: %+v", games)
	}

	send(t, alice, "chat_history", map[string]any{"scope": gameID, "limit": 10})
	hist := recvType(t, alice, "chat_history")
	var msgs []struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(hist.Payload, &msgs)
	if len(msgs) != 1 || msgs[0].Text != "good luck" {
		t.Fatalf("history: %+v", msgs)
	}
}
