package artwork

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLookup(endpoint string) *Lookup {
	l := New(zerolog.Nop())
	l.endpoint = endpoint
	return l
}

func artworkServer(hits *atomic.Int32, handler func(entity string) []itunesResult) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		_ = json.NewEncoder(w).Encode(itunesResponse{Results: handler(r.URL.Query().Get("entity"))})
	}))
}

func oneResult(string) []itunesResult {
	return []itunesResult{{ArtworkURL100: "https://example.com/art/100x100bb.jpg"}}
}

func TestAlbum_ReturnsUpscaledURL(t *testing.T) {
	srv := artworkServer(nil, oneResult)
	defer srv.Close()

	got := newTestLookup(srv.URL).Album(context.Background(), "Queen", "A Night at the Opera")
	want := "https://example.com/art/600x600bb.jpg"
	if got != want {
		t.Errorf("Album() = %q, want %q", got, want)
	}
}

func TestAlbum_CachesResults(t *testing.T) {
	var hits atomic.Int32
	srv := artworkServer(&hits, oneResult)
	defer srv.Close()

	l := newTestLookup(srv.URL)
	ctx := context.Background()
	l.Album(ctx, "Queen", "A Night at the Opera")
	l.Album(ctx, "Queen", "A Night at the Opera")
	l.Album(ctx, "Queen", "A Night at the Opera")

	if n := hits.Load(); n != 1 {
		t.Errorf("expected 1 HTTP request, got %d", n)
	}
}

func TestAlbum_FallsBackToSongEntity(t *testing.T) {
	srv := artworkServer(nil, func(entity string) []itunesResult {
		if entity == "album" {
			return nil
		}
		return oneResult(entity)
	})
	defer srv.Close()

	got := newTestLookup(srv.URL).Album(context.Background(), "Ninajirachi", "I Love My Computer")
	if got != "https://example.com/art/600x600bb.jpg" {
		t.Errorf("Album() = %q", got)
	}
}

func TestArtist_NoSongFallback(t *testing.T) {
	var hits atomic.Int32
	srv := artworkServer(&hits, func(string) []itunesResult { return nil })
	defer srv.Close()

	l := newTestLookup(srv.URL)
	if got := l.Artist(context.Background(), "Unknown"); got != "" {
		t.Errorf("expected empty string for no results, got %q", got)
	}
	// Misses are cached too.
	l.Artist(context.Background(), "Unknown")
	if n := hits.Load(); n != 1 {
		t.Errorf("expected 1 HTTP request, got %d", n)
	}
}

func TestLookup_EmptyOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if got := newTestLookup(srv.URL).Album(context.Background(), "Artist", "Album"); got != "" {
		t.Errorf("expected empty string on HTTP error, got %q", got)
	}
}

func TestLookup_EmptyOnUnreachable(t *testing.T) {
	l := newTestLookup("http://127.0.0.1:1") // nothing listening

	if got := l.Album(context.Background(), "Artist", "Album"); got != "" {
		t.Errorf("expected empty string on connection error, got %q", got)
	}
}

func TestLookup_CancelledNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := artworkServer(&hits, oneResult)
	defer srv.Close()

	l := newTestLookup(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := l.Artist(ctx, "Queen"); got != "" {
		t.Errorf("expected empty string for cancelled lookup, got %q", got)
	}
	if got := l.Artist(context.Background(), "Queen"); got == "" {
		t.Error("cancelled miss was cached")
	}
}
