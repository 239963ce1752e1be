package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfmyers9/slackfm/internal/config"
	"github.com/jfmyers9/slackfm/internal/store"
)

func newTestDaemon() *Daemon {
	return &Daemon{logger: zerolog.Nop()}
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunStopsOnCancel(t *testing.T) {
	d := newTestDaemon()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- d.run(ctx, []task{
			{name: "a", run: blockUntilDone},
			{name: "b", run: blockUntilDone},
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunFailureStopsOtherTasks(t *testing.T) {
	d := newTestDaemon()
	boom := errors.New("listen tcp :3000: address already in use")

	var stopped atomic.Bool
	err := d.run(context.Background(), []task{
		{name: "http", run: func(context.Context) error { return boom }},
		{name: "slack", run: func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Store(true)
			return ctx.Err()
		}},
	})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "http:")
	assert.True(t, stopped.Load())
}

type sweepFunc func(ctx context.Context) (int64, error)

func (f sweepFunc) Sweep(ctx context.Context) (int64, error) { return f(ctx) }

func TestSweeperRunsImmediatelyAndOnTick(t *testing.T) {
	var calls atomic.Int32
	s := NewSweeper(sweepFunc(func(context.Context) (int64, error) {
		if calls.Add(1) == 2 {
			return 0, errors.New("database is locked")
		}
		return 3, nil
	}), 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"sweeps continue after an error")
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewSweeperDefaultInterval(t *testing.T) {
	s := NewSweeper(sweepFunc(func(context.Context) (int64, error) { return 0, nil }), 0, zerolog.Nop())
	assert.Equal(t, 5*time.Minute, s.interval)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Slack.BotToken = "xoxb-test"
	cfg.Slack.AppToken = "xapp-test"
	cfg.LastFM.APIKey = "key"
	cfg.LastFM.APISecret = "secret"
	cfg.LastFM.CallbackURL = "https://slackfm.example.com/lastfm/callback"
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.CallbackRateLimit = 20
	cfg.Link.TTL = 10 * time.Minute
	cfg.Link.SweepInterval = time.Minute
	cfg.Cooldown.Window = 2 * time.Second
	cfg.Cooldown.EvictAfter = 15 * time.Minute
	return cfg
}

func TestBuildWiresComponents(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)

	d, err := build(testConfig(), db, zerolog.Nop())
	require.NoError(t, err)

	assert.NotNil(t, d.bot)
	assert.NotNil(t, d.http)
	assert.NotNil(t, d.sweeper)

	names := make([]string, 0, 3)
	for _, tk := range d.tasks() {
		names = append(names, tk.name)
	}
	assert.Equal(t, []string{"slack", "http", "sweeper"}, names)

	require.NoError(t, d.Shutdown())
	assert.Error(t, db.Ping(context.Background()), "store closed on shutdown")
}

func TestBuildRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"missing api key", func(c *config.Config) { c.LastFM.APIKey = "" }},
		{"bad app token", func(c *config.Config) { c.Slack.AppToken = "xoxb-nope" }},
		{"relative callback", func(c *config.Config) { c.LastFM.CallbackURL = "/lastfm/callback" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := store.Open(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })

			cfg := testConfig()
			tt.modify(cfg)
			_, err = build(cfg, db, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestNewOpensDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Path = t.TempDir() + "/slackfm.db"

	d, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, d.Shutdown())
}
