// db.go
//
// Database helpers for the tic-tac-toe server.
// Responsibilities:
//   - Opening SQLite with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Purging aged rows (chat and long-dead sessions older than 24h).
//   - Recording match outcomes into per-user stats.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// openDB opens (and creates if missing) a SQLite database file.
// Ensures the parent directory exists for relative DSNs (e.g. ./data/app.db),
// configures busy timeout and WAL journaling, and enforces foreign keys.
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// migrations run in order; each is recorded in _migrations and never
// re-applied.
var migrations = []struct {
	name string
	sql  string
}{
	{"001_sessions", `
		CREATE TABLE IF NOT EXISTS sessions (
			game_id      TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			players      TEXT NOT NULL,
			board        TEXT NOT NULL,
			status       TEXT NOT NULL,
			current_turn TEXT NOT NULL,
			winner       TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);`},
	{"002_chat", `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id         TEXT PRIMARY KEY,
			scope      TEXT NOT NULL,
			author     TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_scope_created ON chat_messages(scope, created_at);`},
	{"003_users", `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			games_played  INTEGER NOT NULL DEFAULT 0,
			wins          INTEGER NOT NULL DEFAULT 0,
			streak        INTEGER NOT NULL DEFAULT 0
		);`},
}

// migrate applies pending migrations inside per-migration transactions.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	for _, m := range migrations {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, m.name).Scan(&done)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("query _migrations: %w", err)
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.name, err)
		}
		log.Info().Str("migration", m.name).Msg("applied")
	}
	return nil
}

// purgeAged removes session rows untouched for over 24 hours. Chat ages
// out through the store's PurgeChatBefore, which covers both backends;
// session rows orphaned by a durable outage only exist here, so this
// keeps the table from growing without bound.
func purgeAged(ctx context.Context, db *sql.DB) {
	cutoff := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339Nano)
	if res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff); err == nil {
		if n, _ := res.RowsAffected(); n > 0 {
			log.Info().Int64("rows", n).Msg("purged aged sessions")
		}
	} else {
		log.Warn().Err(err).Msg("session purge failed")
	}
}

// dbStats records match outcomes into the users table. Guests have no
// row; their outcomes update nothing, which is fine.
type dbStats struct {
	db *sql.DB
}

// RecordResult increments games played and updates wins/streak based on
// the outcome, inside a small transaction.
func (s *dbStats) RecordResult(ctx context.Context, userID, outcome string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var gp, wins, streak int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak); err != nil {
		if err == sql.ErrNoRows {
			return nil // guest, nothing to record
		}
		return err
	}
	gp++
	switch outcome {
	case "win":
		wins++
		streak++
	case "loss":
		streak = 0
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`,
		gp, wins, streak, userID); err != nil {
		return err
	}
	return tx.Commit()
}
