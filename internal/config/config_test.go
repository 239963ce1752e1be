package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Server.CallbackRateLimit)
	assert.Equal(t, 10*time.Minute, cfg.Link.TTL)
	assert.Equal(t, 25*time.Millisecond, cfg.Leaderboard.CallDelay)
	assert.Equal(t, 10*time.Second, cfg.Leaderboard.CallTimeout)
	assert.Equal(t, 100, cfg.Leaderboard.CrownThreshold)
	assert.Equal(t, 2*time.Second, cfg.Cooldown.Window)
	assert.Equal(t, 15*time.Minute, cfg.Cooldown.EvictAfter)
	assert.True(t, strings.HasSuffix(cfg.Database.Path, "slackfm.db"))
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
slack:
  bot_token: xoxb-file
  app_token: xapp-file
lastfm:
  api_key: key
  api_secret: secret
  callback_url: https://bot.example.com/lastfm/callback
leaderboard:
  call_delay: 50ms
  max_in_flight: 4
`)
	t.Setenv("SLACKFM_SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("SLACKFM_SERVER_ADDR", ":8080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "xoxb-env", cfg.Slack.BotToken, "environment overrides file")
	assert.Equal(t, "xapp-file", cfg.Slack.AppToken)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.Leaderboard.CallDelay)
	assert.Equal(t, 4, cfg.Leaderboard.MaxInFlight)
	assert.NoError(t, cfg.Validate())
}

func TestLoadLegacyEnv(t *testing.T) {
	path := writeConfig(t, "{}")
	t.Setenv("LASTFM_SHARED_SECRET", "legacy-secret")
	t.Setenv("SLACK_APP_TOKEN", "xapp-legacy")
	t.Setenv("SLACKFM_SLACK_APP_TOKEN", "xapp-prefixed")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "legacy-secret", cfg.LastFM.APISecret)
	assert.Equal(t, "xapp-prefixed", cfg.Slack.AppToken, "prefixed name wins")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Slack:       SlackConfig{BotToken: "xoxb-1", AppToken: "xapp-1"},
		LastFM:      LastFMConfig{APIKey: "k", APISecret: "s", CallbackURL: "https://bot.example.com/lastfm/callback"},
		Server:      ServerConfig{Addr: ":3000", CallbackRateLimit: 20},
		Link:        LinkConfig{TTL: 10 * time.Minute},
		Leaderboard: LeaderboardConfig{CallDelay: 25 * time.Millisecond},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name: "missing credentials",
			mutate: func(c *Config) {
				c.Slack.BotToken = ""
				c.LastFM.APISecret = ""
			},
			wantErr: []string{"slack.bot_token is required", "lastfm.api_secret is required"},
		},
		{
			name:    "wrong token kinds",
			mutate:  func(c *Config) { c.Slack.BotToken, c.Slack.AppToken = "xapp-1", "xoxb-1" },
			wantErr: []string{`slack.bot_token should start with "xoxb-"`, `slack.app_token should start with "xapp-"`},
		},
		{
			name:    "callback not a URL",
			mutate:  func(c *Config) { c.LastFM.CallbackURL = "bot.example.com/callback" },
			wantErr: []string{"lastfm.callback_url should be a valid http(s) URL"},
		},
		{
			name:    "negative fan-out settings",
			mutate:  func(c *Config) { c.Leaderboard.CallDelay, c.Leaderboard.MaxInFlight = -1, -1 },
			wantErr: []string{"leaderboard.call_delay", "leaderboard.max_in_flight"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestSave(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := validConfig()
	path, err := cfg.Save()
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Slack.BotToken, loaded.Slack.BotToken)
	assert.Equal(t, cfg.LastFM.CallbackURL, loaded.LastFM.CallbackURL)
}
