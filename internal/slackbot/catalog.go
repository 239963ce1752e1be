package slackbot

import (
	"context"
	"time"

	"github.com/jfmyers9/slackfm/pkg/lastfm"
)

// Catalog resolves what a command is about.
type Catalog interface {
	SearchArtist(ctx context.Context, name string) (*lastfm.ArtistMatch, error)
	SearchAlbum(ctx context.Context, name string) (*lastfm.AlbumMatch, error)
	SearchTrack(ctx context.Context, name string) (*lastfm.TrackMatch, error)
	LastTrack(ctx context.Context, username string) (*lastfm.RecentTrack, error)
}

// LastFMCatalog is a Catalog and Profiles backed by the Last.fm API. Search
// lookups return nil with no error when nothing matched.
type LastFMCatalog struct {
	Client *lastfm.Client
}

func (c LastFMCatalog) SearchArtist(ctx context.Context, name string) (*lastfm.ArtistMatch, error) {
	matches, err := c.Client.Artist().Search(ctx, name, 1)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func (c LastFMCatalog) SearchAlbum(ctx context.Context, name string) (*lastfm.AlbumMatch, error) {
	matches, err := c.Client.Album().Search(ctx, name, 1)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func (c LastFMCatalog) SearchTrack(ctx context.Context, name string) (*lastfm.TrackMatch, error) {
	matches, err := c.Client.Track().Search(ctx, name, 1)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func (c LastFMCatalog) LastTrack(ctx context.Context, username string) (*lastfm.RecentTrack, error) {
	tracks, err := c.Client.User().GetRecentTracks(ctx, username, 1)
	if err != nil || len(tracks) == 0 {
		return nil, err
	}
	return &tracks[0], nil
}

// Profiles reads a Last.fm user's listening data.
type Profiles interface {
	RecentTracks(ctx context.Context, username string, limit int) ([]lastfm.RecentTrack, error)
	UserInfo(ctx context.Context, username string) (*lastfm.UserInfo, error)
	CountScrobbles(ctx context.Context, username string, from, to time.Time) (int, error)
	TopTracks(ctx context.Context, username string, limit int) ([]lastfm.TopItem, error)
	TopAlbums(ctx context.Context, username string, limit int) ([]lastfm.TopItem, error)
	ArtistInfo(ctx context.Context, artist, username string) (*lastfm.ArtistInfo, error)
	AlbumInfo(ctx context.Context, artist, album, username string) (*lastfm.AlbumInfo, error)
	TrackInfo(ctx context.Context, artist, track, username string) (*lastfm.TrackInfo, error)
}

func (c LastFMCatalog) RecentTracks(ctx context.Context, username string, limit int) ([]lastfm.RecentTrack, error) {
	return c.Client.User().GetRecentTracks(ctx, username, limit)
}

func (c LastFMCatalog) UserInfo(ctx context.Context, username string) (*lastfm.UserInfo, error) {
	return c.Client.User().GetInfo(ctx, username)
}

func (c LastFMCatalog) CountScrobbles(ctx context.Context, username string, from, to time.Time) (int, error) {
	return c.Client.User().CountScrobbles(ctx, username, from, to)
}

func (c LastFMCatalog) TopTracks(ctx context.Context, username string, limit int) ([]lastfm.TopItem, error) {
	return c.Client.User().GetTopTracks(ctx, username, limit)
}

func (c LastFMCatalog) TopAlbums(ctx context.Context, username string, limit int) ([]lastfm.TopItem, error) {
	return c.Client.User().GetTopAlbums(ctx, username, limit)
}

func (c LastFMCatalog) ArtistInfo(ctx context.Context, artist, username string) (*lastfm.ArtistInfo, error) {
	return c.Client.Artist().GetInfo(ctx, artist, username)
}

func (c LastFMCatalog) AlbumInfo(ctx context.Context, artist, album, username string) (*lastfm.AlbumInfo, error) {
	return c.Client.Album().GetInfo(ctx, artist, album, username)
}

func (c LastFMCatalog) TrackInfo(ctx context.Context, artist, track, username string) (*lastfm.TrackInfo, error) {
	return c.Client.Track().GetInfo(ctx, artist, track, username)
}
