// Package store persists link states, linked identities and crowns in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store is the durable backing for the link and leaderboard subsystems.
// Every record is scoped by workspace.
type Store struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS link_states (
		slack_user_id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (slack_user_id, workspace_id, state)
	);

	CREATE INDEX IF NOT EXISTS idx_link_states_created ON link_states(created_at);

	CREATE TABLE IF NOT EXISTS user_links (
		slack_user_id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		lastfm_username TEXT NOT NULL,
		session_key TEXT,
		linked_at INTEGER NOT NULL,
		PRIMARY KEY (slack_user_id, workspace_id)
	);

	CREATE INDEX IF NOT EXISTS idx_user_links_workspace ON user_links(workspace_id);

	CREATE TABLE IF NOT EXISTS whoknows_crowns (
		workspace_id TEXT NOT NULL,
		artist_name TEXT NOT NULL,
		slack_user_id TEXT NOT NULL,
		play_count INTEGER NOT NULL,
		earned_at INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, artist_name)
	);

	CREATE INDEX IF NOT EXISTS idx_crowns_holder ON whoknows_crowns(workspace_id, slack_user_id);
`

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers; link-state consumption relies
	// on each statement running to completion before the next starts.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
