// Package link implements the Slack to Last.fm account linking handshake.
//
// A link starts with Initiate, which records a single-use state token for the
// (user, workspace) pair and returns the Last.fm authorization URL. Last.fm
// redirects the browser back to the callback with a token, and Redeem
// consumes the state, exchanges the token for a session key and stores the
// identity.
package link

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/slackfm/internal/store"
	"github.com/jfmyers9/slackfm/pkg/lastfm"
)

// DefaultTTL is how long a link state may be redeemed after it is created.
const DefaultTTL = 10 * time.Minute

const stateLength = 32

var (
	// ErrInvalidRequest means a redemption parameter was missing.
	ErrInvalidRequest = errors.New("link: invalid request")

	// ErrInvalidOrExpired means no pending state matched or it outlived the
	// TTL. Callers must not reveal which.
	ErrInvalidOrExpired = errors.New("link: invalid or expired state")

	// ErrUpstream means the Last.fm session exchange failed. The state has
	// already been consumed.
	ErrUpstream = errors.New("link: session exchange failed")

	// ErrStore means a store operation failed. Safe to retry.
	ErrStore = errors.New("link: store failure")
)

// StateStore persists pending link states.
type StateStore interface {
	CreateLinkState(ctx context.Context, ls store.LinkState) error
	ConsumeLinkState(ctx context.Context, userID, workspaceID, state string) (*store.LinkState, error)
	SweepLinkStates(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdentityStore persists linked identities.
type IdentityStore interface {
	GetIdentity(ctx context.Context, userID, workspaceID string) (*store.Identity, error)
	UpsertIdentity(ctx context.Context, id store.Identity) error
	DeleteIdentity(ctx context.Context, userID, workspaceID string) error
}

// Authorizer builds authorization URLs and exchanges tokens for sessions.
// *lastfm.AuthService satisfies it.
type Authorizer interface {
	AuthURL(callbackURL string) string
	GetSession(ctx context.Context, token string) (*lastfm.Session, error)
}

// Notifier is told about completed links.
type Notifier interface {
	NotifyLinked(ctx context.Context, id store.Identity) error
}

// Options configures a Service.
type Options struct {
	// CallbackURL is the public URL of the callback endpoint. Required.
	CallbackURL string

	// TTL defaults to DefaultTTL.
	TTL time.Duration

	// Notifier is optional.
	Notifier Notifier

	Logger zerolog.Logger

	// Now and NewState are overridable for tests.
	Now      func() time.Time
	NewState func() (string, error)
}

// Service runs the link handshake.
type Service struct {
	states      StateStore
	identities  IdentityStore
	auth        Authorizer
	notifier    Notifier
	callbackURL *url.URL
	ttl         time.Duration
	now         func() time.Time
	newState    func() (string, error)
	logger      zerolog.Logger
}

// Initiation is the outcome of starting a link.
type Initiation struct {
	AuthorizationURL string
	State            string

	// Existing is the identity already linked for the pair, if any.
	// Re-linking replaces it.
	Existing *store.Identity
}

// RedeemRequest carries the parameters echoed back on the callback.
type RedeemRequest struct {
	Token       string
	UserID      string
	WorkspaceID string
	State       string
}

// NewService creates a Service.
func NewService(states StateStore, identities IdentityStore, auth Authorizer, opts Options) (*Service, error) {
	if states == nil || identities == nil || auth == nil {
		return nil, fmt.Errorf("link: stores and authorizer are required")
	}

	cb, err := url.Parse(opts.CallbackURL)
	if err != nil {
		return nil, fmt.Errorf("link: invalid callback URL: %w", err)
	}
	if !cb.IsAbs() || cb.Host == "" {
		return nil, fmt.Errorf("link: callback URL must be absolute: %q", opts.CallbackURL)
	}

	s := &Service{
		states:      states,
		identities:  identities,
		auth:        auth,
		notifier:    opts.Notifier,
		callbackURL: cb,
		ttl:         opts.TTL,
		now:         opts.Now,
		newState:    opts.NewState,
		logger:      opts.Logger.With().Str("component", "link").Logger(),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newState == nil {
		s.newState = func() (string, error) { return gonanoid.New(stateLength) }
	}

	return s, nil
}

// TTL returns the link state lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Initiate records a fresh link state for (userID, workspaceID) and returns
// the URL the user must visit. No URL is returned if the state could not be
// stored.
func (s *Service) Initiate(ctx context.Context, userID, workspaceID string) (*Initiation, error) {
	if userID == "" || workspaceID == "" {
		return nil, ErrInvalidRequest
	}

	existing, err := s.identities.GetIdentity(ctx, userID, workspaceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	state, err := s.newState()
	if err != nil {
		return nil, fmt.Errorf("link: failed to generate state: %w", err)
	}

	ls := store.LinkState{
		UserID:      userID,
		WorkspaceID: workspaceID,
		State:       state,
		CreatedAt:   s.now(),
	}
	if err := s.states.CreateLinkState(ctx, ls); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	s.logger.Debug().
		Str("user", userID).
		Str("workspace", workspaceID).
		Msg("Link state created")

	return &Initiation{
		AuthorizationURL: s.auth.AuthURL(s.callbackFor(ls)),
		State:            state,
		Existing:         existing,
	}, nil
}

// callbackFor returns the callback URL carrying the state lookup key.
func (s *Service) callbackFor(ls store.LinkState) string {
	cb := *s.callbackURL
	q := cb.Query()
	q.Set("slack_user_id", ls.UserID)
	q.Set("workspace_id", ls.WorkspaceID)
	q.Set("state", ls.State)
	cb.RawQuery = q.Encode()
	return cb.String()
}

// Redeem completes a link. The pending state is consumed before the token
// exchange, so a failed exchange requires a fresh Initiate.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*store.Identity, error) {
	if req.Token == "" || req.UserID == "" || req.WorkspaceID == "" || req.State == "" {
		return nil, ErrInvalidRequest
	}

	ls, err := s.states.ConsumeLinkState(ctx, req.UserID, req.WorkspaceID, req.State)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	if ls.Expired(s.now(), s.ttl) {
		s.logger.Info().
			Str("user", req.UserID).
			Str("workspace", req.WorkspaceID).
			Time("created_at", ls.CreatedAt).
			Msg("Rejected expired link state")
		return nil, ErrInvalidOrExpired
	}

	session, err := s.auth.GetSession(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	id := store.Identity{
		UserID:         req.UserID,
		WorkspaceID:    req.WorkspaceID,
		LastFMUsername: session.Username,
		SessionKey:     session.Key,
		LinkedAt:       s.now(),
	}
	if err := s.identities.UpsertIdentity(ctx, id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	s.logger.Info().
		Str("user", id.UserID).
		Str("workspace", id.WorkspaceID).
		Str("lastfm_user", id.LastFMUsername).
		Msg("Account linked")

	if s.notifier != nil {
		if err := s.notifier.NotifyLinked(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("user", id.UserID).Msg("Failed to send link notification")
		}
	}

	return &id, nil
}

// Unlink removes the identity for (userID, workspaceID). It reports false if
// nothing was linked.
func (s *Service) Unlink(ctx context.Context, userID, workspaceID string) (bool, error) {
	err := s.identities.DeleteIdentity(ctx, userID, workspaceID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStore, err)
	}

	s.logger.Info().Str("user", userID).Str("workspace", workspaceID).Msg("Account unlinked")
	return true, nil
}

// Sweep deletes link states older than the TTL.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.states.SweepLinkStates(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return n, nil
}
