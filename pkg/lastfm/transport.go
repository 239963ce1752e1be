package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// errorEnvelope is the JSON body Last.fm returns for failed calls.
type errorEnvelope struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

// call makes an HTTP request to the Last.fm API.
//
// Signed calls are sent as a form POST carrying api_sig and are attempted
// exactly once; a session exchange must never be replayed. Unsigned read
// calls are sent as GET and retried up to the client's MaxRetries for
// network failures, 5xx responses and temporary API errors.
func (c *Client) call(ctx context.Context, method string, params map[string]string, signed bool) (json.RawMessage, error) {
	reqParams := make(map[string]string, len(params)+4)
	for k, v := range params {
		if v == "" {
			continue
		}
		reqParams[k] = v
	}
	reqParams["method"] = method
	reqParams["api_key"] = c.apiKey

	values := url.Values{}
	for k, v := range reqParams {
		values.Set(k, v)
	}
	if signed {
		values.Set("api_sig", calculateSignature(reqParams, c.apiSecret))
	}
	values.Set("format", "json")

	attempts := c.maxRetries
	if signed {
		attempts = 1
	}

	var lastErr error
	backoff := 1 * time.Second

	for i := 0; i < attempts; i++ {
		c.logDebugf("lastfm: calling %s (attempt %d/%d)", method, i+1, attempts)

		req, err := c.newRequest(ctx, values, signed)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetryNetworkError(err) && i < attempts-1 {
				c.logDebugf("lastfm: network error, retrying: %v", err)
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, fmt.Errorf("http request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
			if i < attempts-1 {
				c.logDebugf("lastfm: server error, retrying: %v", lastErr)
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, lastErr
		}

		// Last.fm reports API errors in the body, sometimes with a 4xx status.
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Code != 0 {
			lastfmErr := &Error{Code: envelope.Code, Message: envelope.Message}
			if lastfmErr.Temporary() && i < attempts-1 {
				c.logDebugf("lastfm: temporary error, retrying: %v", lastfmErr)
				lastErr = lastfmErr
				if !sleep(ctx, backoff) {
					return nil, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, lastfmErr
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		if !json.Valid(body) {
			return nil, fmt.Errorf("failed to parse JSON response for %s", method)
		}

		c.logDebugf("lastfm: %s succeeded", method)
		return json.RawMessage(body), nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// newRequest builds a POST form request for signed calls and a GET for reads.
func (c *Client) newRequest(ctx context.Context, values url.Values, signed bool) (*http.Request, error) {
	var req *http.Request
	var err error
	if signed {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(values.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// shouldRetryNetworkError checks if a network error is retryable.
func shouldRetryNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextBackoff calculates the next backoff duration with exponential increase.
// Maximum backoff is capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
