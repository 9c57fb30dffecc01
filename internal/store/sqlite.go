// internal/store/sqlite.go
//
// Durable implementation of the Store interface on SQLite.
// Responsibilities:
//   - Map sessions to the sessions table (players/board JSON-encoded,
//     timestamps RFC3339).
//   - Map chat messages to the chat_messages table.
//
// Schema is created by the migrations at process start (db.go); this
// file assumes the tables exist.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/game"
)

// SQLite stores sessions and chat in a relational database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an opened database handle.
func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

// Load reads one session row; ErrNotFound when the row is missing.
func (s *SQLite) Load(ctx context.Context, id string) (*game.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT game_id, name, players, board, status, current_turn, winner, created_at, updated_at
		FROM sessions WHERE game_id=?`, id)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sess, err
}

// Save upserts the session row.
func (s *SQLite) Save(ctx context.Context, sess *game.Session) error {
	players, err := json.Marshal(sess.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	board, err := json.Marshal(sess.Board)
	if err != nil {
		return fmt.Errorf("encode board: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (game_id, name, players, board, status, current_turn, winner, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(game_id) DO UPDATE SET
			name=excluded.name, players=excluded.players, board=excluded.board,
			status=excluded.status, current_turn=excluded.current_turn,
			winner=excluded.winner, updated_at=excluded.updated_at`,
		sess.ID, sess.Name, string(players), string(board),
		string(sess.Status), string(sess.CurrentTurn), sess.Winner,
		sess.CreatedAt.UTC().Format(time.RFC3339Nano),
		sess.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Delete removes the session row.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE game_id=?`, id)
	return err
}

// ListAll returns every session row.
func (s *SQLite) ListAll(ctx context.Context) ([]*game.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, name, players, board, status, current_turn, winner, created_at, updated_at
		FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AppendChat inserts one chat row. Duplicate ids are ignored.
func (s *SQLite) AppendChat(ctx context.Context, m ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_messages (id, scope, author, text, created_at)
		VALUES (?,?,?,?,?)`,
		m.ID, m.Scope, m.Author, m.Text, m.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// ChatHistory returns up to limit most recent messages for scope,
// oldest first.
func (s *SQLite) ChatHistory(ctx context.Context, scope string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, author, text, created_at
		FROM chat_messages WHERE scope=?
		ORDER BY created_at DESC LIMIT ?`, scope, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var created string
		if err := rows.Scan(&m.ID, &m.Scope, &m.Author, &m.Text, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse DESC query result into oldest-first order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PurgeChatBefore deletes chat rows older than t.
func (s *SQLite) PurgeChatBefore(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE created_at < ?`,
		t.UTC().Format(time.RFC3339Nano))
	return err
}

// scanSession decodes one sessions row via the given Scan func.
func scanSession(scan func(dest ...any) error) (*game.Session, error) {
	var (
		sess            game.Session
		players, board  string
		status, turn    string
		created, update string
	)
	err := scan(&sess.ID, &sess.Name, &players, &board, &status, &turn, &sess.Winner, &created, &update)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(players), &sess.Players); err != nil {
		return nil, fmt.Errorf("decode players for %s: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(board), &sess.Board); err != nil {
		return nil, fmt.Errorf("decode board for %s: %w", sess.ID, err)
	}
	sess.Status = game.Status(status)
	sess.CurrentTurn = game.Symbol(turn)
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(update)
	return &sess, nil
}

// parseTime parses RFC3339 timestamps; zero time on error.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

var _ Store = (*SQLite)(nil)
