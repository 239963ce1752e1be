package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// AlbumService provides album.* read operations.
type AlbumService struct {
	client *Client
}

// GetInfo returns metadata for an album, including the play count of
// username when set.
func (s *AlbumService) GetInfo(ctx context.Context, artist, album, username string) (*AlbumInfo, error) {
	if artist == "" || album == "" {
		return nil, fmt.Errorf("lastfm: artist and album are required")
	}

	body, err := s.client.call(ctx, "album.getInfo", map[string]string{
		"artist":   artist,
		"album":    album,
		"username": username,
	}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Album *AlbumInfo `json:"album"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse album response: %w", err)
	}
	if resp.Album == nil {
		return nil, fmt.Errorf("lastfm: album %q by %q not found", album, artist)
	}
	return resp.Album, nil
}

// Search returns up to limit albums matching name.
func (s *AlbumService) Search(ctx context.Context, name string, limit int) ([]AlbumMatch, error) {
	body, err := s.client.call(ctx, "album.search", map[string]string{
		"album": name,
		"limit": strconv.Itoa(limit),
	}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results struct {
			Matches struct {
				Album oneOrMany[AlbumMatch] `json:"album"`
			} `json:"albummatches"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse album search: %w", err)
	}
	return resp.Results.Matches.Album, nil
}
