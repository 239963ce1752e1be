package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ArtistService provides artist.* read operations.
type ArtistService struct {
	client *Client
}

// GetInfo returns metadata for an artist. When username is set, the
// response's Stats.UserPlayCount carries that user's play count.
func (s *ArtistService) GetInfo(ctx context.Context, artist, username string) (*ArtistInfo, error) {
	if artist == "" {
		return nil, fmt.Errorf("lastfm: artist is required")
	}

	body, err := s.client.call(ctx, "artist.getInfo", map[string]string{
		"artist":   artist,
		"username": username,
	}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Artist *ArtistInfo `json:"artist"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse artist response: %w", err)
	}
	if resp.Artist == nil {
		return nil, fmt.Errorf("lastfm: artist %q not found", artist)
	}
	return resp.Artist, nil
}

// Search returns up to limit artists matching name, best match first.
func (s *ArtistService) Search(ctx context.Context, name string, limit int) ([]ArtistMatch, error) {
	body, err := s.client.call(ctx, "artist.search", map[string]string{
		"artist": name,
		"limit":  strconv.Itoa(limit),
	}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results struct {
			Matches struct {
				Artist oneOrMany[ArtistMatch] `json:"artist"`
			} `json:"artistmatches"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse artist search: %w", err)
	}
	return resp.Results.Matches.Artist, nil
}
