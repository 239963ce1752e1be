package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfmyers9/slackfm/pkg/lastfm"
)

// mapPlaying returns fixed now playing state per username. Usernames absent
// from the map are idle; names in fail error.
type mapPlaying struct {
	mu      sync.Mutex
	playing map[string]string
	fail    map[string]bool
	started map[string]time.Time
}

func (m *mapPlaying) NowPlaying(_ context.Context, username string) (*Playing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started == nil {
		m.started = make(map[string]time.Time)
	}
	m.started[username] = time.Now()
	if m.fail[username] {
		return nil, errors.New("lookup failed")
	}
	track, ok := m.playing[username]
	if !ok {
		return nil, nil
	}
	return &Playing{Track: track, Artist: "Radiohead"}, nil
}

func TestListeningLinkOrder(t *testing.T) {
	f := newFixture(t, nil, "U1", "U2", "U3", "U4")
	reader := &mapPlaying{
		playing: map[string]string{"lfm-U4": "Airbag", "lfm-U2": "Lucky", "lfm-U3": "Reckoner"},
		fail:    map[string]bool{"lfm-U3": true},
	}
	p := NewPresence(f.store, reader, Options{CallDelay: time.Millisecond, Logger: zerolog.Nop()})

	got, err := p.Listening(context.Background(), "W1")
	require.NoError(t, err)

	var names []string
	for _, l := range got {
		names = append(names, fmt.Sprintf("%s=%s", l.UserID, l.Track))
	}
	assert.Equal(t, []string{"U2=Lucky", "U4=Airbag"}, names)
	assert.Equal(t, "lfm-U2", got[0].LastFMUsername)
}

func TestListeningStaggersCalls(t *testing.T) {
	users := []string{"U0", "U1", "U2", "U3"}
	f := newFixture(t, nil, users...)
	reader := &mapPlaying{}
	delay := 20 * time.Millisecond
	p := NewPresence(f.store, reader, Options{CallDelay: delay, Logger: zerolog.Nop()})

	start := time.Now()
	got, err := p.Listening(context.Background(), "W1")
	require.NoError(t, err)
	assert.Empty(t, got)

	for i, u := range users {
		started := reader.started["lfm-"+u]
		assert.GreaterOrEqual(t, started.Sub(start), time.Duration(i)*delay, "call %d started early", i)
	}
}

func TestListeningCancelled(t *testing.T) {
	f := newFixture(t, nil, "U1")
	p := NewPresence(f.store, &mapPlaying{}, Options{Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Listening(ctx, "W1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLastFMCounterNowPlaying(t *testing.T) {
	var idle atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user.getRecentTracks", r.URL.Query().Get("method"))
		attr := ""
		if !idle.Load() {
			attr = `,"@attr":{"nowplaying":"true"}`
		}
		fmt.Fprintf(w, `{"recenttracks":{"track":[{"name":"Airbag","artist":{"#text":"Radiohead"},"album":{"#text":"OK Computer"},
			"image":[{"#text":"m.png","size":"medium"}]%s}]}}`, attr)
	}))
	defer srv.Close()

	client, err := lastfm.NewClient(lastfm.Config{APIKey: "k", APISecret: "s", BaseURL: srv.URL})
	require.NoError(t, err)
	c := LastFMCounter{Client: client}

	got, err := c.NowPlaying(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, &Playing{Track: "Airbag", Artist: "Radiohead", Album: "OK Computer", Image: "m.png"}, got)

	idle.Store(true)
	got, err = c.NowPlaying(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, got)
}
