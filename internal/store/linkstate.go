package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LinkState is a pending authorization attempt for (user, workspace).
type LinkState struct {
	UserID      string
	WorkspaceID string
	State       string
	CreatedAt   time.Time
}

// Expired reports whether the state is at least ttl old at now.
func (ls LinkState) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(ls.CreatedAt) >= ttl
}

// CreateLinkState inserts a pending link state.
func (s *Store) CreateLinkState(ctx context.Context, ls LinkState) error {
	query := `
		INSERT INTO link_states (slack_user_id, workspace_id, state, created_at)
		VALUES (?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query, ls.UserID, ls.WorkspaceID, ls.State, toMillis(ls.CreatedAt)); err != nil {
		return fmt.Errorf("failed to insert link state: %w", err)
	}
	return nil
}

// ConsumeLinkState deletes the matching link state and returns it.
//
// Lookup and deletion are a single statement, so of two concurrent callers
// with the same key exactly one receives the record and the other gets
// ErrNotFound. Expiry is left to the caller; an expired record is still
// removed.
func (s *Store) ConsumeLinkState(ctx context.Context, userID, workspaceID, state string) (*LinkState, error) {
	query := `
		DELETE FROM link_states
		WHERE slack_user_id = ? AND workspace_id = ? AND state = ?
		RETURNING created_at
	`

	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, userID, workspaceID, state).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume link state: %w", err)
	}

	return &LinkState{UserID: userID, WorkspaceID: workspaceID, State: state, CreatedAt: fromMillis(createdAt)}, nil
}

// SweepLinkStates removes link states created before cutoff and returns how
// many were deleted.
func (s *Store) SweepLinkStates(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM link_states WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep link states: %w", err)
	}
	return rowsAffected(result)
}
