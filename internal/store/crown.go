package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Crown marks the leading listener of an artist within a workspace.
type Crown struct {
	WorkspaceID string
	Artist      string
	HolderID    string
	PlayCount   int
	EarnedAt    time.Time
}

// CrownCount is the number of crowns a user holds in a workspace.
type CrownCount struct {
	UserID string
	Crowns int
}

// GetCrown returns the crown for (workspaceID, artist) or ErrNotFound.
func (s *Store) GetCrown(ctx context.Context, workspaceID, artist string) (*Crown, error) {
	query := `
		SELECT slack_user_id, play_count, earned_at
		FROM whoknows_crowns
		WHERE workspace_id = ? AND artist_name = ?
	`

	c := Crown{WorkspaceID: workspaceID, Artist: artist}
	var earnedAt int64
	err := s.db.QueryRowContext(ctx, query, workspaceID, artist).Scan(&c.HolderID, &c.PlayCount, &earnedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query crown: %w", err)
	}
	c.EarnedAt = fromMillis(earnedAt)

	return &c, nil
}

// InsertCrown creates the crown if none exists for (workspace, artist).
// Returns false when another writer created it first.
func (s *Store) InsertCrown(ctx context.Context, c Crown) (bool, error) {
	query := `
		INSERT INTO whoknows_crowns (workspace_id, artist_name, slack_user_id, play_count, earned_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, artist_name) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query, c.WorkspaceID, c.Artist, c.HolderID, c.PlayCount, toMillis(c.EarnedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert crown: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// TransferCrown hands the crown to c.HolderID, but only while the stored
// holder differs and has a strictly lower play count. Returns false when
// the condition no longer holds.
func (s *Store) TransferCrown(ctx context.Context, c Crown) (bool, error) {
	query := `
		UPDATE whoknows_crowns
		SET slack_user_id = ?, play_count = ?, earned_at = ?
		WHERE workspace_id = ? AND artist_name = ?
		AND slack_user_id <> ? AND play_count < ?
	`

	result, err := s.db.ExecContext(ctx, query,
		c.HolderID, c.PlayCount, toMillis(c.EarnedAt),
		c.WorkspaceID, c.Artist,
		c.HolderID, c.PlayCount,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transfer crown: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// RaiseCrownPlayCount raises the holder's recorded play count. Ownership
// and earned_at are unchanged. Returns false if holderID no longer holds the
// crown or the stored count is not lower.
func (s *Store) RaiseCrownPlayCount(ctx context.Context, workspaceID, artist, holderID string, playCount int) (bool, error) {
	query := `
		UPDATE whoknows_crowns
		SET play_count = ?
		WHERE workspace_id = ? AND artist_name = ?
		AND slack_user_id = ? AND play_count < ?
	`

	result, err := s.db.ExecContext(ctx, query, playCount, workspaceID, artist, holderID, playCount)
	if err != nil {
		return false, fmt.Errorf("failed to update crown play count: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// CrownCounts returns how many crowns each holder has in the workspace,
// most crowns first. Ties are ordered by user ID.
func (s *Store) CrownCounts(ctx context.Context, workspaceID string) ([]CrownCount, error) {
	query := `
		SELECT slack_user_id, COUNT(*) AS crowns
		FROM whoknows_crowns
		WHERE workspace_id = ?
		GROUP BY slack_user_id
		ORDER BY crowns DESC, slack_user_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query crown counts: %w", err)
	}
	defer rows.Close()

	var counts []CrownCount
	for rows.Next() {
		var cc CrownCount
		if err := rows.Scan(&cc.UserID, &cc.Crowns); err != nil {
			return nil, fmt.Errorf("failed to scan crown count: %w", err)
		}
		counts = append(counts, cc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crown counts: %w", err)
	}

	return counts, nil
}
