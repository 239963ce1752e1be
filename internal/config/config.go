package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// SLACKFM_SLACK_BOT_TOKEN for slack.bot_token.
const EnvPrefix = "SLACKFM"

// Config holds application configuration
type Config struct {
	Slack       SlackConfig
	LastFM      LastFMConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Link        LinkConfig
	Leaderboard LeaderboardConfig
	Cooldown    CooldownConfig
}

// SlackConfig holds Slack app credentials
type SlackConfig struct {
	BotToken string // xoxb-
	AppToken string // xapp-, for Socket Mode
	Debug    bool
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey      string
	APISecret   string
	CallbackURL string
	MaxRetries  int
}

// ServerConfig configures the callback HTTP server
type ServerConfig struct {
	Addr string

	// CallbackRateLimit is the number of callback requests allowed per
	// client IP per minute.
	CallbackRateLimit int
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	Path string
}

// LinkConfig configures the account link handshake
type LinkConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// LeaderboardConfig tunes the who-knows fan-out
type LeaderboardConfig struct {
	CallDelay      time.Duration
	CallTimeout    time.Duration
	MaxInFlight    int
	CrownThreshold int
}

// CooldownConfig configures per-command throttling
type CooldownConfig struct {
	Window     time.Duration
	EvictAfter time.Duration
}

// legacyEnv maps keys to the unprefixed variable names used by older .env
// files. The prefixed name always wins.
var legacyEnv = map[string]string{
	"slack.bot_token":     "SLACK_BOT_TOKEN",
	"slack.app_token":     "SLACK_APP_TOKEN",
	"lastfm.api_key":      "LASTFM_API_KEY",
	"lastfm.api_secret":   "LASTFM_SHARED_SECRET",
	"lastfm.callback_url": "LASTFM_CALLBACK_URL",
	"database.path":       "DB_PATH",
}

// Load reads configuration from file, .env and environment.
//
// If configFile is empty, config.yaml is looked up in the config directory
// and the working directory and may be absent. A .env file in the working
// directory is loaded into the environment first; variables already set are
// not overridden.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("slack.debug", false)
	v.SetDefault("lastfm.max_retries", 3)
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.callback_rate_limit", 20)
	v.SetDefault("database.path", filepath.Join(getDataDir(), "slackfm.db"))
	v.SetDefault("link.ttl", 10*time.Minute)
	v.SetDefault("link.sweep_interval", 10*time.Minute)
	v.SetDefault("leaderboard.call_delay", 25*time.Millisecond)
	v.SetDefault("leaderboard.call_timeout", 10*time.Second)
	v.SetDefault("leaderboard.max_in_flight", 0)
	v.SetDefault("leaderboard.crown_threshold", 100)
	v.SetDefault("cooldown.window", 2*time.Second)
	v.SetDefault("cooldown.evict_after", 15*time.Minute)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Slack: SlackConfig{
			BotToken: v.GetString("slack.bot_token"),
			AppToken: v.GetString("slack.app_token"),
			Debug:    v.GetBool("slack.debug"),
		},
		LastFM: LastFMConfig{
			APIKey:      v.GetString("lastfm.api_key"),
			APISecret:   v.GetString("lastfm.api_secret"),
			CallbackURL: v.GetString("lastfm.callback_url"),
			MaxRetries:  v.GetInt("lastfm.max_retries"),
		},
		Server: ServerConfig{
			Addr:              v.GetString("server.addr"),
			CallbackRateLimit: v.GetInt("server.callback_rate_limit"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Link: LinkConfig{
			TTL:           v.GetDuration("link.ttl"),
			SweepInterval: v.GetDuration("link.sweep_interval"),
		},
		Leaderboard: LeaderboardConfig{
			CallDelay:      v.GetDuration("leaderboard.call_delay"),
			CallTimeout:    v.GetDuration("leaderboard.call_timeout"),
			MaxInFlight:    v.GetInt("leaderboard.max_in_flight"),
			CrownThreshold: v.GetInt("leaderboard.crown_threshold"),
		},
		Cooldown: CooldownConfig{
			Window:     v.GetDuration("cooldown.window"),
			EvictAfter: v.GetDuration("cooldown.evict_after"),
		},
	}
}

// Validate reports every missing required setting and malformed value.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		key   string
		value string
	}{
		{"slack.bot_token", c.Slack.BotToken},
		{"slack.app_token", c.Slack.AppToken},
		{"lastfm.api_key", c.LastFM.APIKey},
		{"lastfm.api_secret", c.LastFM.APISecret},
		{"lastfm.callback_url", c.LastFM.CallbackURL},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}

	if c.Slack.BotToken != "" && !strings.HasPrefix(c.Slack.BotToken, "xoxb-") {
		errs = append(errs, errors.New(`slack.bot_token should start with "xoxb-"`))
	}
	if c.Slack.AppToken != "" && !strings.HasPrefix(c.Slack.AppToken, "xapp-") {
		errs = append(errs, errors.New(`slack.app_token should start with "xapp-"`))
	}
	if c.LastFM.CallbackURL != "" {
		u, err := url.Parse(c.LastFM.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, errors.New("lastfm.callback_url should be a valid http(s) URL"))
		}
	}

	if c.Link.TTL <= 0 {
		errs = append(errs, errors.New("link.ttl must be positive"))
	}
	if c.Leaderboard.CallDelay < 0 {
		errs = append(errs, errors.New("leaderboard.call_delay must not be negative"))
	}
	if c.Leaderboard.MaxInFlight < 0 {
		errs = append(errs, errors.New("leaderboard.max_in_flight must not be negative"))
	}
	if c.Server.CallbackRateLimit <= 0 {
		errs = append(errs, errors.New("server.callback_rate_limit must be positive"))
	}

	return errors.Join(errs...)
}

// getConfigDir returns the configuration directory path
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".config", "slackfm")
}

// getDataDir returns the default directory for the database
func getDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "slackfm")
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes the credentials in c to config.yaml in the config directory
// and returns the file path.
func (c *Config) Save() (string, error) {
	configDir := getConfigDir()
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	configFile := filepath.Join(configDir, "config.yaml")

	v := viper.New()
	v.Set("slack.bot_token", c.Slack.BotToken)
	v.Set("slack.app_token", c.Slack.AppToken)
	v.Set("lastfm.api_key", c.LastFM.APIKey)
	v.Set("lastfm.api_secret", c.LastFM.APISecret)
	v.Set("lastfm.callback_url", c.LastFM.CallbackURL)
	v.Set("server.addr", c.Server.Addr)
	v.Set("database.path", c.Database.Path)

	if err := v.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return configFile, nil
}
