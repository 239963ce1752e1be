// Package leaderboard ranks the linked users of a workspace by play count and
// maintains per-artist crowns.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jfmyers9/slackfm/internal/store"
)

// Defaults for Options.
const (
	DefaultCallDelay      = 25 * time.Millisecond
	DefaultCallTimeout    = 10 * time.Second
	DefaultCrownThreshold = 100
)

// Kind selects what a Subject counts plays of.
type Kind int

const (
	KindArtist Kind = iota
	KindAlbum
	KindTrack
)

func (k Kind) String() string {
	switch k {
	case KindArtist:
		return "artist"
	case KindAlbum:
		return "album"
	case KindTrack:
		return "track"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Subject is the artist, album or track being ranked. Album and Track are
// only read for their kinds.
type Subject struct {
	Kind   Kind
	Artist string
	Album  string
	Track  string
}

// Name returns the display name of the subject.
func (s Subject) Name() string {
	switch s.Kind {
	case KindAlbum:
		return s.Album
	case KindTrack:
		return s.Track
	default:
		return s.Artist
	}
}

// PlayCounter looks up one user's play count for a subject.
type PlayCounter interface {
	PlayCount(ctx context.Context, subject Subject, username string) (int, error)
}

// IdentityLister loads the linked identities of a workspace in a stable
// order.
type IdentityLister interface {
	ListIdentities(ctx context.Context, workspaceID string) ([]store.Identity, error)
}

// CrownStore holds crowns. Writes are conditional and report whether they
// applied.
type CrownStore interface {
	GetCrown(ctx context.Context, workspaceID, artist string) (*store.Crown, error)
	InsertCrown(ctx context.Context, c store.Crown) (bool, error)
	TransferCrown(ctx context.Context, c store.Crown) (bool, error)
	RaiseCrownPlayCount(ctx context.Context, workspaceID, artist, holderID string, playCount int) (bool, error)
}

// Entry is one ranked user.
type Entry struct {
	UserID         string
	LastFMUsername string
	PlayCount      int

	// Failed is set when the lookup failed and PlayCount was forced to 0.
	Failed bool
}

// TransitionType describes what a ranking did to the crown.
type TransitionType int

const (
	TransitionNone TransitionType = iota
	TransitionFirst
	TransitionStealer
)

func (t TransitionType) String() string {
	switch t {
	case TransitionFirst:
		return "first"
	case TransitionStealer:
		return "stealer"
	default:
		return "none"
	}
}

// Transition reports the crown after a ranking. For TransitionNone the
// holder fields describe the existing crown and are empty if there is none.
type Transition struct {
	Type      TransitionType
	Holder    string
	PlayCount int
	Since     time.Time
}

// HasHolder reports whether a crown exists.
func (t *Transition) HasHolder() bool {
	return t != nil && t.Holder != ""
}

// Result is a ranking.
type Result struct {
	Subject Subject
	Entries []Entry

	// Crown is nil for album and track subjects.
	Crown *Transition
}

// Empty reports whether the workspace had nobody to rank.
func (r *Result) Empty() bool {
	return len(r.Entries) == 0
}

// RankOf returns the 1-based position of userID, or 0 if absent.
func (r *Result) RankOf(userID string) int {
	for i, e := range r.Entries {
		if e.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// Options configures an Aggregator.
type Options struct {
	// CallDelay staggers lookups: call i starts i*CallDelay after dispatch.
	CallDelay time.Duration

	// CallTimeout bounds each lookup.
	CallTimeout time.Duration

	// MaxInFlight bounds concurrent lookups. Zero means unbounded.
	MaxInFlight int

	// CrownThreshold is the minimum leading play count for a crown.
	CrownThreshold int

	Logger zerolog.Logger
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CallDelay <= 0 {
		o.CallDelay = DefaultCallDelay
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.CrownThreshold <= 0 {
		o.CrownThreshold = DefaultCrownThreshold
	}
	if o.MaxInFlight < 0 {
		o.MaxInFlight = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Aggregator ranks workspaces.
type Aggregator struct {
	identities IdentityLister
	crowns     CrownStore
	counter    PlayCounter
	opts       Options
	logger     zerolog.Logger
}

// New creates an Aggregator. Zero option values take the package defaults.
func New(identities IdentityLister, crowns CrownStore, counter PlayCounter, opts Options) *Aggregator {
	opts = opts.withDefaults()
	return &Aggregator{
		identities: identities,
		crowns:     crowns,
		counter:    counter,
		opts:       opts,
		logger:     opts.Logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Rank looks up every linked user's play count for subject, sorts them
// descending and, for artists, updates the crown.
//
// A workspace with no linked users yields an empty result. Individual lookup
// failures count as 0 plays. Users with equal counts keep the order in which
// they linked.
func (a *Aggregator) Rank(ctx context.Context, workspaceID string, subject Subject) (*Result, error) {
	ids, err := a.identities.ListIdentities(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	result := &Result{Subject: subject}
	if len(ids) == 0 {
		return result, nil
	}

	result.Entries = a.fanOut(ctx, subject, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(result.Entries, func(i, j int) bool {
		return result.Entries[i].PlayCount > result.Entries[j].PlayCount
	})

	if subject.Kind == KindArtist {
		result.Crown = a.updateCrown(ctx, workspaceID, subject.Artist, result.Entries[0])
	}

	return result, nil
}

// fanOut runs one play count lookup per identity.
func (a *Aggregator) fanOut(ctx context.Context, subject Subject, ids []store.Identity) []Entry {
	entries := make([]Entry, len(ids))
	for i, id := range ids {
		entries[i] = Entry{UserID: id.UserID, LastFMUsername: id.LastFMUsername}
	}

	stagger(ctx, len(ids), a.opts, func(i int, released bool) {
		if !released {
			entries[i].Failed = true
			return
		}
		count, err := a.lookup(ctx, subject, ids[i].LastFMUsername)
		if err != nil {
			a.logger.Debug().
				Err(err).
				Str("user", ids[i].UserID).
				Str("subject", subject.Name()).
				Msg("Play count lookup failed")
			entries[i].Failed = true
			return
		}
		entries[i].PlayCount = count
	})
	return entries
}

// stagger calls fn for every index in [0, n). Call i is released at
// dispatch + i*CallDelay; released calls run concurrently. released is false
// when ctx ended before the release time.
func stagger(ctx context.Context, n int, opts Options, fn func(i int, released bool)) {
	dispatch := time.Now()

	var g errgroup.Group
	if opts.MaxInFlight > 0 {
		g.SetLimit(opts.MaxInFlight)
	}

	for i := 0; i < n; i++ {
		release := dispatch.Add(time.Duration(i) * opts.CallDelay)
		g.Go(func() error {
			fn(i, waitUntil(ctx, release))
			return nil
		})
	}

	_ = g.Wait()
}

func (a *Aggregator) lookup(ctx context.Context, subject Subject, username string) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
	defer cancel()

	count, err := a.counter.PlayCount(callCtx, subject, username)
	if err != nil {
		return 0, err
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// waitUntil sleeps until t. Returns false if ctx ends first.
func waitUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// updateCrown applies the crown rules for leader. Store failures are logged
// and reported as no change; the ranking itself is still valid.
func (a *Aggregator) updateCrown(ctx context.Context, workspaceID, artist string, leader Entry) *Transition {
	log := a.logger.With().Str("workspace", workspaceID).Str("artist", artist).Logger()

	crown, err := a.crowns.GetCrown(ctx, workspaceID, artist)
	if errors.Is(err, store.ErrNotFound) {
		crown = nil
	} else if err != nil {
		log.Error().Err(err).Msg("Failed to read crown")
		return &Transition{Type: TransitionNone}
	}

	if leader.PlayCount < a.opts.CrownThreshold {
		return noChange(crown)
	}

	now := a.opts.Now()
	next := store.Crown{
		WorkspaceID: workspaceID,
		Artist:      artist,
		HolderID:    leader.UserID,
		PlayCount:   leader.PlayCount,
		EarnedAt:    now,
	}

	var (
		applied bool
		outcome TransitionType
	)
	switch {
	case crown == nil:
		applied, err = a.crowns.InsertCrown(ctx, next)
		outcome = TransitionFirst
	case leader.PlayCount <= crown.PlayCount:
		return noChange(crown)
	case crown.HolderID != leader.UserID:
		applied, err = a.crowns.TransferCrown(ctx, next)
		outcome = TransitionStealer
	default:
		applied, err = a.crowns.RaiseCrownPlayCount(ctx, workspaceID, artist, leader.UserID, leader.PlayCount)
		outcome = TransitionNone
		next.EarnedAt = crown.EarnedAt
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write crown")
		return noChange(crown)
	}

	if !applied {
		// A concurrent ranking got there first; report what it left.
		log.Debug().Msg("Crown write lost a race")
		current, err := a.crowns.GetCrown(ctx, workspaceID, artist)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Error().Err(err).Msg("Failed to re-read crown")
			}
			return noChange(crown)
		}
		return noChange(current)
	}

	if outcome != TransitionNone {
		log.Info().
			Str("holder", leader.UserID).
			Int("plays", leader.PlayCount).
			Str("outcome", outcome.String()).
			Msg("Crown changed hands")
	}

	return &Transition{
		Type:      outcome,
		Holder:    next.HolderID,
		PlayCount: next.PlayCount,
		Since:     next.EarnedAt,
	}
}

func noChange(c *store.Crown) *Transition {
	if c == nil {
		return &Transition{Type: TransitionNone}
	}
	return &Transition{
		Type:      TransitionNone,
		Holder:    c.HolderID,
		PlayCount: c.PlayCount,
		Since:     c.EarnedAt,
	}
}
