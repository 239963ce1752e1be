package leaderboard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Playing is the track a user is listening to right now.
type Playing struct {
	Track  string
	Artist string
	Album  string
	Image  string
}

// NowPlayingReader reports what a Last.fm user is playing. It returns nil
// with no error when nothing is playing.
type NowPlayingReader interface {
	NowPlaying(ctx context.Context, username string) (*Playing, error)
}

// Listener is a linked user with a track playing.
type Listener struct {
	UserID         string
	LastFMUsername string
	Playing
}

// Presence finds who in a workspace is listening right now. Lookups are
// staggered the same way as rankings.
type Presence struct {
	identities IdentityLister
	reader     NowPlayingReader
	opts       Options
	logger     zerolog.Logger
}

// NewPresence creates a Presence. Zero option values take the package
// defaults; CrownThreshold is unused.
func NewPresence(identities IdentityLister, reader NowPlayingReader, opts Options) *Presence {
	opts = opts.withDefaults()
	return &Presence{
		identities: identities,
		reader:     reader,
		opts:       opts,
		logger:     opts.Logger.With().Str("component", "presence").Logger(),
	}
}

// Listening returns the linked users of workspaceID who are playing a track,
// in the order they linked. Users whose lookup fails are left out.
func (p *Presence) Listening(ctx context.Context, workspaceID string) ([]Listener, error) {
	ids, err := p.identities.ListIdentities(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	found := make([]*Listener, len(ids))
	stagger(ctx, len(ids), p.opts, func(i int, released bool) {
		if !released {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
		defer cancel()

		playing, err := p.reader.NowPlaying(callCtx, ids[i].LastFMUsername)
		if err != nil {
			p.logger.Debug().Err(err).Str("user", ids[i].UserID).Msg("Now playing lookup failed")
			return
		}
		if playing != nil {
			found[i] = &Listener{UserID: ids[i].UserID, LastFMUsername: ids[i].LastFMUsername, Playing: *playing}
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var listeners []Listener
	for _, l := range found {
		if l != nil {
			listeners = append(listeners, *l)
		}
	}
	return listeners, nil
}
