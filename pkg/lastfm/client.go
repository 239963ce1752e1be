package lastfm

import (
	"fmt"
	"net/http"
	"time"
)

// Config holds client configuration.
type Config struct {
	APIKey     string        // Required: Last.fm API key
	APISecret  string        // Required: Last.fm shared secret
	HTTPClient *http.Client  // Optional: HTTP client (defaults to one with Timeout)
	Timeout    time.Duration // Optional: per-request timeout when HTTPClient is nil (default 10s)
	BaseURL    string        // Optional: Base URL for API (defaults to Last.fm API, used for testing)
	AuthURL    string        // Optional: Web authorization URL (defaults to Last.fm)
	UserAgent  string        // Optional: User-Agent header
	MaxRetries int           // Optional: attempts for read methods (default 1, no retry)
	Logger     Logger        // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for Last.fm API operations.
type Client struct {
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	baseURL    string
	authURL    string
	userAgent  string
	maxRetries int
	logger     Logger

	auth   *AuthService
	artist *ArtistService
	album  *AlbumService
	track  *TrackService
	user   *UserService
}

const (
	// DefaultBaseURL is the default Last.fm API endpoint.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// DefaultAuthURL is the page where users grant an application access.
	DefaultAuthURL = "https://www.last.fm/api/auth"

	// DefaultTimeout bounds every HTTP round trip when no client is supplied.
	DefaultTimeout = 10 * time.Second
)

// NewClient creates a new Last.fm API client.
//
// Returns an error if required configuration (APIKey, APISecret) is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	}
	if cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: APISecret is required", ErrInvalidConfig)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "slackfm/1.0"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		httpClient: httpClient,
		baseURL:    baseURL,
		authURL:    authURL,
		userAgent:  userAgent,
		maxRetries: maxRetries,
		logger:     cfg.Logger,
	}

	c.auth = &AuthService{client: c}
	c.artist = &ArtistService{client: c}
	c.album = &AlbumService{client: c}
	c.track = &TrackService{client: c}
	c.user = &UserService{client: c}

	return c, nil
}

// Auth returns the authentication service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Artist returns the artist service.
func (c *Client) Artist() *ArtistService {
	return c.artist
}

// Album returns the album service.
func (c *Client) Album() *AlbumService {
	return c.album
}

// Track returns the track service.
func (c *Client) Track() *TrackService {
	return c.track
}

// User returns the user service.
func (c *Client) User() *UserService {
	return c.user
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
