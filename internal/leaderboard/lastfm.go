package leaderboard

import (
	"context"
	"fmt"

	"github.com/jfmyers9/slackfm/pkg/lastfm"
)

// LastFMCounter reads userplaycount from the *.getInfo methods and now
// playing state from user.getRecentTracks.
type LastFMCounter struct {
	Client *lastfm.Client
}

// PlayCount implements PlayCounter.
func (c LastFMCounter) PlayCount(ctx context.Context, subject Subject, username string) (int, error) {
	switch subject.Kind {
	case KindArtist:
		info, err := c.Client.Artist().GetInfo(ctx, subject.Artist, username)
		if err != nil {
			return 0, err
		}
		return int(info.Stats.UserPlayCount), nil
	case KindAlbum:
		info, err := c.Client.Album().GetInfo(ctx, subject.Artist, subject.Album, username)
		if err != nil {
			return 0, err
		}
		return int(info.UserPlayCount), nil
	case KindTrack:
		info, err := c.Client.Track().GetInfo(ctx, subject.Artist, subject.Track, username)
		if err != nil {
			return 0, err
		}
		return int(info.UserPlayCount), nil
	default:
		return 0, fmt.Errorf("leaderboard: unknown subject kind %s", subject.Kind)
	}
}

// NowPlaying implements NowPlayingReader from the newest recent track.
func (c LastFMCounter) NowPlaying(ctx context.Context, username string) (*Playing, error) {
	tracks, err := c.Client.User().GetRecentTracks(ctx, username, 1)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 || !tracks[0].NowPlaying {
		return nil, nil
	}
	t := tracks[0]
	return &Playing{Track: t.Name, Artist: t.Artist, Album: t.Album, Image: t.Image.Largest()}, nil
}
