// internal/ws/hub.go
//
// WebSocket push transport. The hub tracks one Client per upgraded
// connection and implements events.Sink, so the broadcaster can deliver
// envelopes straight to a connection's send queue. Delivery into a full
// queue drops the connection; the client recovers by reconnecting and
// re-fetching full state.

package ws

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/events"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/session"
)

// Identify resolves the caller's user id from the upgrade request.
// Wired from main so the transport stays agnostic of cookie/JWT details.
type Identify func(r *http.Request) string

// Hub owns every live websocket client.
type Hub struct {
	svc      *session.Service
	identify Identify

	mu      sync.RWMutex
	clients map[string]*Client // connID -> client
}

// NewHub constructs the hub.
func NewHub(svc *session.Service, identify Identify) *Hub {
	return &Hub{
		svc:      svc,
		identify: identify,
		clients:  make(map[string]*Client),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer in front; the ws endpoint
	// accepts the upgrade and authenticates via the same cookie.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades the request and runs the connection's pumps.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("ws upgrade failed")
			return
		}
		userID := ""
		if h.identify != nil {
			userID = h.identify(r)
		}
		if userID == "" {
			// No token and no guest cookie; mint a per-connection guest id.
			userID = "guest-" + uuid.NewString()[:8]
		}
		c := &Client{
			hub:    h,
			conn:   conn,
			send:   make(chan []byte, 64),
			connID: uuid.NewString(),
			userID: userID,
		}
		h.add(c)
		h.svc.Registry().Register(c.connID, userID)
		log.Info().Str("connId", c.connID).Str("user", userID).Msg("ws connected")

		go c.writePump()
		c.readPump()
	}
}

// Deliver implements events.Sink: push one envelope to one connection.
func (h *Hub) Deliver(connID string, env events.Envelope) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.push(marshalEvent(env))
}

// CloseAll drops every client; used during graceful shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.conn.Close()
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.connID] = c
	h.mu.Unlock()
}

// remove detaches the client and runs the exactly-once disconnect
// cleanup. Safe to call from both pump exit paths.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c.connID]
	delete(h.clients, c.connID)
	h.mu.Unlock()
	if present {
		h.svc.Disconnect(c.ctx(), c.connID)
		log.Info().Str("connId", c.connID).Msg("ws disconnected")
	}
}
