package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// UserService provides user.* read operations.
type UserService struct {
	client *Client
}

// GetRecentTracks returns the user's most recent tracks, newest first.
// A track that is currently playing is included with NowPlaying set.
func (s *UserService) GetRecentTracks(ctx context.Context, username string, limit int) ([]RecentTrack, error) {
	resp, err := s.recentTracks(ctx, username, map[string]string{
		"limit": strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}

	tracks := make([]RecentTrack, 0, len(resp.Track))
	for _, t := range resp.Track {
		track := RecentTrack{
			Name:       t.Name,
			Artist:     t.Artist.Text,
			Album:      t.Album.Text,
			Image:      t.Image,
			NowPlaying: t.Attr.NowPlaying == "true",
		}
		if uts, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil && uts > 0 {
			track.PlayedAt = time.Unix(uts, 0).UTC()
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// CountScrobbles returns how many tracks the user scrobbled in [from, to].
func (s *UserService) CountScrobbles(ctx context.Context, username string, from, to time.Time) (int, error) {
	resp, err := s.recentTracks(ctx, username, map[string]string{
		"from":  strconv.FormatInt(from.Unix(), 10),
		"to":    strconv.FormatInt(to.Unix(), 10),
		"limit": "1",
	})
	if err != nil {
		return 0, err
	}
	return int(resp.Attr.Total), nil
}

func (s *UserService) recentTracks(ctx context.Context, username string, params map[string]string) (*recentTracksJSON, error) {
	if username == "" {
		return nil, fmt.Errorf("lastfm: username is required")
	}
	params["user"] = username

	body, err := s.client.call(ctx, "user.getRecentTracks", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		RecentTracks recentTracksJSON `json:"recenttracks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse recent tracks: %w", err)
	}
	return &resp.RecentTracks, nil
}

// GetInfo returns a user's profile.
func (s *UserService) GetInfo(ctx context.Context, username string) (*UserInfo, error) {
	if username == "" {
		return nil, fmt.Errorf("lastfm: username is required")
	}

	body, err := s.client.call(ctx, "user.getInfo", map[string]string{
		"user": username,
	}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		User *userInfoJSON `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse user response: %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("lastfm: user %q not found", username)
	}

	info := &UserInfo{
		Name:      resp.User.Name,
		RealName:  resp.User.RealName,
		URL:       resp.User.URL,
		Image:     resp.User.Image,
		PlayCount: int(resp.User.PlayCount),
	}
	if unix := int64(resp.User.Registered.Unixtime); unix > 0 {
		info.Registered = time.Unix(unix, 0).UTC()
	}
	return info, nil
}

// GetTopTracks returns the user's all-time most played tracks.
func (s *UserService) GetTopTracks(ctx context.Context, username string, limit int) ([]TopItem, error) {
	body, err := s.top(ctx, "user.getTopTracks", username, limit)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TopTracks struct {
			Track oneOrMany[topItemJSON] `json:"track"`
		} `json:"toptracks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse top tracks: %w", err)
	}
	return topItems(resp.TopTracks.Track), nil
}

// GetTopAlbums returns the user's all-time most played albums.
func (s *UserService) GetTopAlbums(ctx context.Context, username string, limit int) ([]TopItem, error) {
	body, err := s.top(ctx, "user.getTopAlbums", username, limit)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TopAlbums struct {
			Album oneOrMany[topItemJSON] `json:"album"`
		} `json:"topalbums"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse top albums: %w", err)
	}
	return topItems(resp.TopAlbums.Album), nil
}

func (s *UserService) top(ctx context.Context, method, username string, limit int) (json.RawMessage, error) {
	if username == "" {
		return nil, fmt.Errorf("lastfm: username is required")
	}
	return s.client.call(ctx, method, map[string]string{
		"user":   username,
		"period": "overall",
		"limit":  strconv.Itoa(limit),
	}, false)
}

func topItems(in []topItemJSON) []TopItem {
	items := make([]TopItem, 0, len(in))
	for _, it := range in {
		items = append(items, TopItem{
			Name:      it.Name,
			Artist:    it.Artist.Name,
			PlayCount: int(it.PlayCount),
			Image:     it.Image,
		})
	}
	return items
}
