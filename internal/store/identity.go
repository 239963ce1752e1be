package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Identity links a Slack user in one workspace to a Last.fm account.
type Identity struct {
	UserID         string
	WorkspaceID    string
	LastFMUsername string
	SessionKey     string // empty until the first full link
	LinkedAt       time.Time
}

// GetIdentity returns the identity for (userID, workspaceID) or ErrNotFound.
func (s *Store) GetIdentity(ctx context.Context, userID, workspaceID string) (*Identity, error) {
	query := `
		SELECT lastfm_username, COALESCE(session_key, ''), linked_at
		FROM user_links
		WHERE slack_user_id = ? AND workspace_id = ?
	`

	id := Identity{UserID: userID, WorkspaceID: workspaceID}
	var linkedAt int64
	err := s.db.QueryRowContext(ctx, query, userID, workspaceID).Scan(&id.LastFMUsername, &id.SessionKey, &linkedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}
	id.LinkedAt = fromMillis(linkedAt)

	return &id, nil
}

// UpsertIdentity writes the full identity in one statement, replacing the
// username and session key of an existing row. The row keeps its original
// position in workspace listings.
func (s *Store) UpsertIdentity(ctx context.Context, id Identity) error {
	query := `
		INSERT INTO user_links (slack_user_id, workspace_id, lastfm_username, session_key, linked_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT (slack_user_id, workspace_id) DO UPDATE SET
			lastfm_username = excluded.lastfm_username,
			session_key = excluded.session_key,
			linked_at = excluded.linked_at
	`

	_, err := s.db.ExecContext(ctx, query, id.UserID, id.WorkspaceID, id.LastFMUsername, id.SessionKey, toMillis(id.LinkedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}
	return nil
}

// DeleteIdentity removes the identity for (userID, workspaceID).
// Returns ErrNotFound if there was nothing to delete.
func (s *Store) DeleteIdentity(ctx context.Context, userID, workspaceID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_links WHERE slack_user_id = ? AND workspace_id = ?`,
		userID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIdentities returns every identity in the workspace in the order the
// users first linked.
func (s *Store) ListIdentities(ctx context.Context, workspaceID string) ([]Identity, error) {
	query := `
		SELECT slack_user_id, lastfm_username, COALESCE(session_key, ''), linked_at
		FROM user_links
		WHERE workspace_id = ?
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		id := Identity{WorkspaceID: workspaceID}
		var linkedAt int64
		if err := rows.Scan(&id.UserID, &id.LastFMUsername, &id.SessionKey, &linkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		id.LinkedAt = fromMillis(linkedAt)
		identities = append(identities, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identities: %w", err)
	}

	return identities, nil
}

// CountIdentities returns the number of linked users in the workspace.
func (s *Store) CountIdentities(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_links WHERE workspace_id = ?`, workspaceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count identities: %w", err)
	}
	return count, nil
}
