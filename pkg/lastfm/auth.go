package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// AuthService provides authentication operations for the Last.fm API.
type AuthService struct {
	client *Client
}

// AuthURL returns the web authorization URL for the application.
//
// When callbackURL is non-empty it is passed as the cb parameter; after the
// user grants access, Last.fm redirects the browser to callbackURL with a
// token query parameter appended.
//
// Example:
//
//	authURL := client.Auth().AuthURL("https://example.com/lastfm/callback?state=abc")
//	fmt.Println("Please visit:", authURL)
func (a *AuthService) AuthURL(callbackURL string) string {
	q := url.Values{}
	q.Set("api_key", a.client.apiKey)
	if callbackURL != "" {
		q.Set("cb", callbackURL)
	}
	return a.client.authURL + "?" + q.Encode()
}

// GetSession exchanges an authorized token for a session key.
//
// The request is signed with the shared secret and is never retried.
// A response without a session object returns ErrNoSession.
//
// Example:
//
//	session, err := client.Auth().GetSession(ctx, token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Store session.Key and session.Username for future use
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("lastfm: token is required")
	}

	body, err := a.client.call(ctx, "auth.getSession", map[string]string{"token": token}, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Session *struct {
			Name       string `json:"name"`
			Key        string `json:"key"`
			Subscriber Count  `json:"subscriber"`
		} `json:"session"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse session response: %w", err)
	}
	if resp.Session == nil || resp.Session.Key == "" || resp.Session.Name == "" {
		return nil, ErrNoSession
	}

	return &Session{
		Key:        resp.Session.Key,
		Username:   resp.Session.Name,
		Subscriber: resp.Session.Subscriber > 0,
	}, nil
}
