// Package lastfm provides a client library for the Last.fm API 2.0.
//
// # Overview
//
// This package implements the subset of the Last.fm API a chat bot needs to
// link accounts and compare listening statistics between users: the web
// authentication flow, per-user play counts for artists, albums and tracks,
// catalogue search, and the user profile, recent and top charts. Responses
// are requested as JSON.
//
// # Quick Start
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:    "your-api-key",
//	    APISecret: "your-shared-secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Authentication
//
// Last.fm web authentication works as follows:
//
//  1. Send the user to AuthURL with a callback URL
//  2. Last.fm redirects to the callback with a token parameter
//  3. Exchange the token for a session key with GetSession
//  4. Store the session key and username
//
// Example:
//
//	fmt.Println("Please visit:", client.Auth().AuthURL("https://example.com/lastfm/callback"))
//
//	// in the callback handler
//	session, err := client.Auth().GetSession(ctx, r.URL.Query().Get("token"))
//	if err != nil {
//	    return err
//	}
//	save(session.Username, session.Key)
//
// GetSession requests are signed: the parameters are sorted by name, each
// name is concatenated with its value, the shared secret is appended and the
// MD5 hex digest is sent as api_sig. Signed requests are never retried.
//
// # Play counts
//
//	info, err := client.Artist().GetInfo(ctx, "Radiohead", "someuser")
//	fmt.Println(int(info.Stats.UserPlayCount))
//
// Numeric fields use the Count type, which decodes both string and number
// encodings and treats missing or malformed values as zero.
//
// # Error Handling
//
// API errors are returned as *Error with the Last.fm error code:
//
//	var lastfmErr *lastfm.Error
//	if errors.As(err, &lastfmErr) && lastfmErr.Temporary() {
//	    // try again later
//	}
//
// # Configuration
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:     "your-api-key",
//	    APISecret:  "your-shared-secret",
//	    Timeout:    10 * time.Second,
//	    MaxRetries: 2,
//	    Logger:     myLogger, // Implements lastfm.Logger interface
//	})
//
// # Last.fm API Documentation
//
// https://www.last.fm/api/webauth
package lastfm
