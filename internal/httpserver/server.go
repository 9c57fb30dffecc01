// internal/httpserver/server.go
//
// HTTP polling transport for the session layer.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth; guests play under an anon cookie):
//     list/create/join/move/leave/state/events, chat send/history.
//   - Auth + profile/stat endpoints (require auth): /auth/*, /stats/me.
//
// Every handler calls the same session.Service the websocket transport
// uses; this file only decodes requests and maps error kinds to status
// codes.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/session"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/store"
)

// Server bundles router, session service, and the accounts DB handle.
type Server struct {
	r   *chi.Mux
	svc *session.Service
	db  *sql.DB // nil in memory-only deployments; auth degrades to 503
}

// New constructs a Server, installs middleware, and registers routes.
func New(svc *session.Service, db *sql.DB) *Server {
	s := &Server{r: chi.NewRouter(), svc: svc, db: db}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(corsFromEnv)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"tic-tac-toe-online","endpoints":["/health","/games","/chat","/ws","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Game + chat endpoints, OPTIONAL AUTH (guests can play)
	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		r.Get("/games", s.handleListGames)
		r.Post("/games", s.handleCreateGame)
		r.Get("/games/{id}", s.handleGameState)
		r.Post("/games/{id}/join", s.handleJoinGame)
		r.Post("/games/{id}/move", s.handleMakeMove)
		r.Post("/games/{id}/leave", s.handleLeaveGame)
		r.Get("/games/{id}/events", s.handleGameEvents)
		r.Get("/events", s.handleLobbyEvents)
		r.Post("/chat", s.handleSendChat)
		r.Get("/chat", s.handleChatHistory)
	})

	// Auth + profile/stats (require auth)
	s.mountAuthRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (tests, ws mount, graceful server).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:3000.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ GAME ---------------------------------------

type createGameReq struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	caller := s.identity(w, r)
	if err := s.svc.Allow(caller); err != nil {
		writeErr(w, err)
		return
	}
	var req createGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	sess, err := s.svc.Create(r.Context(), req.Name, caller)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.svc.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(games)
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	caller := s.identity(w, r)
	if err := s.svc.Allow(caller); err != nil {
		writeErr(w, err)
		return
	}
	sess, err := s.svc.Join(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

type moveReq struct {
	Slot int `json:"slot"`
}

func (s *Server) handleMakeMove(w http.ResponseWriter, r *http.Request) {
	caller := s.identity(w, r)
	if err := s.svc.Allow(caller); err != nil {
		writeErr(w, err)
		return
	}
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	sess, err := s.svc.Move(r.Context(), chi.URLParam(r, "id"), caller, req.Slot)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	caller := s.identity(w, r)
	if err := s.svc.Allow(caller); err != nil {
		writeErr(w, err)
		return
	}
	sess, err := s.svc.Leave(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		writeErr(w, err)
		return
	}
	if sess == nil {
		_ = json.NewEncoder(w).Encode(map[string]bool{"removed": true})
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

// handleGameEvents is the polling catch-up path: everything logged for
// the game strictly after ?since (RFC3339).
func (s *Server) handleGameEvents(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.svc.EventsSince(chi.URLParam(r, "id"), parseSince(r)))
}

func (s *Server) handleLobbyEvents(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.svc.EventsSince("", parseSince(r)))
}

func parseSince(r *http.Request) time.Time {
	if raw := r.URL.Query().Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ------------------------------ CHAT ---------------------------------------

type sendChatReq struct {
	Scope string `json:"scope"`
	Text  string `json:"text"`
}

func (s *Server) handleSendChat(w http.ResponseWriter, r *http.Request) {
	caller := s.identity(w, r)
	if err := s.svc.Allow(caller); err != nil {
		writeErr(w, err)
		return
	}
	var req sendChatReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	msg, err := s.svc.SendChat(r.Context(), req.Scope, caller, req.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(msg)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := s.svc.ChatHistory(r.Context(), r.URL.Query().Get("scope"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if msgs == nil {
		msgs = []store.ChatMessage{}
	}
	_ = json.NewEncoder(w).Encode(msgs)
}

// --------------------------- error mapping ---------------------------------

// writeErr maps the session error taxonomy onto HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	kind := session.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case session.KindValidation:
		status = http.StatusBadRequest
	case session.KindConflict:
		status = http.StatusConflict
	case session.KindNotFound:
		status = http.StatusNotFound
	case session.KindRateLimited:
		status = http.StatusTooManyRequests
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}
