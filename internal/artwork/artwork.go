// Package artwork looks up cover images from the iTunes Search API.
// Lookups are best effort: any failure yields an empty URL.
package artwork

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

const (
	defaultEndpoint = "https://itunes.apple.com/search"
	cacheSize       = 512
	cacheTTL        = 6 * time.Hour
)

// Lookup fetches artwork URLs and caches results, including misses, to
// avoid repeated lookups for the same artist and album.
type Lookup struct {
	cache    *expirable.LRU[string, string]
	client   *http.Client
	endpoint string
	logger   zerolog.Logger
}

// New creates a Lookup against the public iTunes endpoint.
func New(logger zerolog.Logger) *Lookup {
	return &Lookup{
		cache: expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		endpoint: defaultEndpoint,
		logger:   logger.With().Str("component", "artwork").Logger(),
	}
}

type itunesResponse struct {
	Results []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
}

// Album returns an artwork URL for the album, falling back to a matching
// song's artwork. Returns "" when nothing is found.
func (l *Lookup) Album(ctx context.Context, artist, album string) string {
	return l.cached(ctx, "album|"+artist+"|"+album, artist+" "+album, "album", "song")
}

// Artist returns artwork of the artist's best matching album, which iTunes
// offers in place of artist photos.
func (l *Lookup) Artist(ctx context.Context, artist string) string {
	return l.cached(ctx, "artist|"+artist, artist, "album")
}

func (l *Lookup) cached(ctx context.Context, key, term string, entities ...string) string {
	if artURL, ok := l.cache.Get(key); ok {
		return artURL
	}

	var artURL string
	for _, entity := range entities {
		if artURL = l.fetch(ctx, term, entity); artURL != "" {
			break
		}
	}

	// Don't cache failures caused by the caller giving up.
	if ctx.Err() == nil {
		l.cache.Add(key, artURL)
	}
	return artURL
}

func (l *Lookup) fetch(ctx context.Context, term, entity string) string {
	query := url.Values{
		"term":   {term},
		"entity": {entity},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return ""
	}

	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Debug().Err(err).Str("term", term).Msg("Artwork lookup failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.logger.Debug().Int("status", resp.StatusCode).Str("term", term).Msg("Artwork lookup failed")
		return ""
	}

	var result itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return ""
	}

	// Upscale from 100x100 to 600x600 for better quality
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1)
}
