package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// TrackService provides track.* read operations.
type TrackService struct {
	client *Client
}

// GetInfo returns metadata for a track, including the play count of
// username when set.
func (s *TrackService) GetInfo(ctx context.Context, artist, track, username string) (*TrackInfo, error) {
	if artist == "" || track == "" {
		return nil, fmt.Errorf("lastfm: artist and track are required")
	}

	body, err := s.client.call(ctx, "track.getInfo", map[string]string{
		"artist":   artist,
		"track":    track,
		"username": username,
	}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Track *TrackInfo `json:"track"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse track response: %w", err)
	}
	if resp.Track == nil {
		return nil, fmt.Errorf("lastfm: track %q by %q not found", track, artist)
	}
	return resp.Track, nil
}

// Search returns up to limit tracks matching name.
func (s *TrackService) Search(ctx context.Context, name string, limit int) ([]TrackMatch, error) {
	body, err := s.client.call(ctx, "track.search", map[string]string{
		"track": name,
		"limit": strconv.Itoa(limit),
	}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results struct {
			Matches struct {
				Track oneOrMany[TrackMatch] `json:"track"`
			} `json:"trackmatches"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse track search: %w", err)
	}
	return resp.Results.Matches.Track, nil
}
