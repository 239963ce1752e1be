package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// getLinkState reads a pending link state without consuming it.
func (s *Store) getLinkState(ctx context.Context, userID, workspaceID, state string) (*LinkState, error) {
	query := `
		SELECT created_at FROM link_states
		WHERE slack_user_id = ? AND workspace_id = ? AND state = ?
	`

	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, userID, workspaceID, state).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query link state: %w", err)
	}

	return &LinkState{UserID: userID, WorkspaceID: workspaceID, State: state, CreatedAt: fromMillis(createdAt)}, nil
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slackfm.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertIdentity(context.Background(), Identity{
		UserID: "U1", WorkspaceID: "T1", LastFMUsername: "alice", LinkedAt: time.Now(),
	}))
	require.NoError(t, s.Close())

	// Reopening must not clobber existing data.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	id, err := s.GetIdentity(context.Background(), "U1", "T1")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.LastFMUsername)
}

func TestLinkStateConsume(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	created := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.CreateLinkState(ctx, LinkState{UserID: "U1", WorkspaceID: "T1", State: "abc", CreatedAt: created}))

	got, err := s.getLinkState(ctx, "U1", "T1", "abc")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created))

	_, err = s.ConsumeLinkState(ctx, "U1", "T2", "abc")
	assert.ErrorIs(t, err, ErrNotFound, "workspace is part of the key")

	consumed, err := s.ConsumeLinkState(ctx, "U1", "T1", "abc")
	require.NoError(t, err)
	assert.True(t, consumed.CreatedAt.Equal(created))

	_, err = s.ConsumeLinkState(ctx, "U1", "T1", "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.getLinkState(ctx, "U1", "T1", "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkStateConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.CreateLinkState(ctx, LinkState{UserID: "U1", WorkspaceID: "T1", State: "abc", CreatedAt: time.Now()}))

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeLinkState(ctx, "U1", "T1", "abc"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestSweepLinkStates(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	now := time.Now()

	require.NoError(t, s.CreateLinkState(ctx, LinkState{UserID: "U1", WorkspaceID: "T1", State: "old", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateLinkState(ctx, LinkState{UserID: "U1", WorkspaceID: "T1", State: "new", CreatedAt: now}))

	n, err := s.SweepLinkStates(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.getLinkState(ctx, "U1", "T1", "new")
	assert.NoError(t, err)
}

func TestLinkStateExpired(t *testing.T) {
	created := time.Unix(0, 0)
	ls := LinkState{CreatedAt: created}

	assert.False(t, ls.Expired(created.Add(9*time.Minute), 10*time.Minute))
	assert.True(t, ls.Expired(created.Add(10*time.Minute), 10*time.Minute))
}

func TestIdentityUpsert(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.GetIdentity(ctx, "U1", "T1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpsertIdentity(ctx, Identity{UserID: "U1", WorkspaceID: "T1", LastFMUsername: "alice", LinkedAt: time.Now()}))
	require.NoError(t, s.UpsertIdentity(ctx, Identity{UserID: "U2", WorkspaceID: "T1", LastFMUsername: "bob", SessionKey: "k2", LinkedAt: time.Now()}))

	id, err := s.GetIdentity(ctx, "U1", "T1")
	require.NoError(t, err)
	assert.Empty(t, id.SessionKey)

	// Relinking replaces the account but keeps the listing position.
	require.NoError(t, s.UpsertIdentity(ctx, Identity{UserID: "U1", WorkspaceID: "T1", LastFMUsername: "alice2", SessionKey: "k1", LinkedAt: time.Now()}))

	id, err = s.GetIdentity(ctx, "U1", "T1")
	require.NoError(t, err)
	assert.Equal(t, "alice2", id.LastFMUsername)
	assert.Equal(t, "k1", id.SessionKey)

	list, err := s.ListIdentities(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "U1", list[0].UserID)
	assert.Equal(t, "U2", list[1].UserID)
}

func TestIdentityWorkspaceScoping(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.UpsertIdentity(ctx, Identity{UserID: "U1", WorkspaceID: "T1", LastFMUsername: "alice", LinkedAt: time.Now()}))
	require.NoError(t, s.UpsertIdentity(ctx, Identity{UserID: "U1", WorkspaceID: "T2", LastFMUsername: "alice-work", LinkedAt: time.Now()}))

	n, err := s.CountIdentities(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteIdentity(ctx, "U1", "T1"))
	assert.ErrorIs(t, s.DeleteIdentity(ctx, "U1", "T1"), ErrNotFound)

	id, err := s.GetIdentity(ctx, "U1", "T2")
	require.NoError(t, err)
	assert.Equal(t, "alice-work", id.LastFMUsername)

	list, err := s.ListIdentities(ctx, "T1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCrownWrites(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	earned := time.UnixMilli(1_700_000_000_000)

	_, err := s.GetCrown(ctx, "T1", "Radiohead")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.InsertCrown(ctx, Crown{WorkspaceID: "T1", Artist: "Radiohead", HolderID: "U1", PlayCount: 150, EarnedAt: earned})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertCrown(ctx, Crown{WorkspaceID: "T1", Artist: "Radiohead", HolderID: "U2", PlayCount: 500, EarnedAt: earned})
	require.NoError(t, err)
	assert.False(t, ok, "second insert loses")

	ok, err = s.TransferCrown(ctx, Crown{WorkspaceID: "T1", Artist: "Radiohead", HolderID: "U2", PlayCount: 150, EarnedAt: earned})
	require.NoError(t, err)
	assert.False(t, ok, "a tie does not steal")

	ok, err = s.RaiseCrownPlayCount(ctx, "T1", "Radiohead", "U1", 175)
	require.NoError(t, err)
	assert.True(t, ok)

	c, err := s.GetCrown(ctx, "T1", "Radiohead")
	require.NoError(t, err)
	assert.Equal(t, "U1", c.HolderID)
	assert.Equal(t, 175, c.PlayCount)
	assert.True(t, c.EarnedAt.Equal(earned), "raise keeps earned_at")

	later := earned.Add(time.Hour)
	ok, err = s.TransferCrown(ctx, Crown{WorkspaceID: "T1", Artist: "Radiohead", HolderID: "U2", PlayCount: 200, EarnedAt: later})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RaiseCrownPlayCount(ctx, "T1", "Radiohead", "U1", 300)
	require.NoError(t, err)
	assert.False(t, ok, "former holder cannot raise")

	c, err = s.GetCrown(ctx, "T1", "Radiohead")
	require.NoError(t, err)
	assert.Equal(t, "U2", c.HolderID)
	assert.Equal(t, 200, c.PlayCount)
	assert.True(t, c.EarnedAt.Equal(later))
}

func TestCrownCounts(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	now := time.Now()

	crowns := []Crown{
		{WorkspaceID: "T1", Artist: "A", HolderID: "U2", PlayCount: 100},
		{WorkspaceID: "T1", Artist: "B", HolderID: "U1", PlayCount: 100},
		{WorkspaceID: "T1", Artist: "C", HolderID: "U2", PlayCount: 100},
		{WorkspaceID: "T2", Artist: "A", HolderID: "U1", PlayCount: 100},
	}
	for _, c := range crowns {
		c.EarnedAt = now
		_, err := s.InsertCrown(ctx, c)
		require.NoError(t, err)
	}

	counts, err := s.CrownCounts(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, []CrownCount{{UserID: "U2", Crowns: 2}, {UserID: "U1", Crowns: 1}}, counts)
}
