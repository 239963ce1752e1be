package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/slackfm/internal/link"
	"github.com/jfmyers9/slackfm/internal/store"
)

type redeemFunc func(ctx context.Context, req link.RedeemRequest) (*store.Identity, error)

func (f redeemFunc) Redeem(ctx context.Context, req link.RedeemRequest) (*store.Identity, error) {
	return f(ctx, req)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCallbackStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"success", nil, http.StatusOK, "Last.fm linked"},
		{"missing parameter", link.ErrInvalidRequest, http.StatusBadRequest, "Invalid or expired link"},
		{"expired", link.ErrInvalidOrExpired, http.StatusBadRequest, "Invalid or expired link"},
		{"upstream", fmt.Errorf("%w: boom", link.ErrUpstream), http.StatusInternalServerError, "Something went wrong"},
		{"store", fmt.Errorf("%w: boom", link.ErrStore), http.StatusInternalServerError, "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(redeemFunc(func(_ context.Context, req link.RedeemRequest) (*store.Identity, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &store.Identity{UserID: req.UserID, WorkspaceID: req.WorkspaceID}, nil
			}), Options{Logger: zerolog.Nop()})

			req := httptest.NewRequest(http.MethodGet, "/lastfm/callback?token=t&slack_user_id=U1&workspace_id=W1&state=s", nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestCallbackParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  link.RedeemRequest
	}{
		{
			name:  "slack_user_id",
			query: "token=t&slack_user_id=U1&workspace_id=W1&state=s",
			want:  link.RedeemRequest{Token: "t", UserID: "U1", WorkspaceID: "W1", State: "s"},
		},
		{
			name:  "user_id alias",
			query: "token=t&user_id=U2&workspace_id=W1&state=s",
			want:  link.RedeemRequest{Token: "t", UserID: "U2", WorkspaceID: "W1", State: "s"},
		},
		{
			name:  "missing token passed through",
			query: "slack_user_id=U1&workspace_id=W1&state=s",
			want:  link.RedeemRequest{UserID: "U1", WorkspaceID: "W1", State: "s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got link.RedeemRequest
			srv := New(redeemFunc(func(_ context.Context, req link.RedeemRequest) (*store.Identity, error) {
				got = req
				return nil, link.ErrInvalidRequest
			}), Options{Logger: zerolog.Nop()})

			srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lastfm/callback?"+tt.query, nil))

			if got != tt.want {
				t.Errorf("Redeem() got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCallbackRateLimited(t *testing.T) {
	srv := New(redeemFunc(func(context.Context, link.RedeemRequest) (*store.Identity, error) {
		return nil, link.ErrInvalidRequest
	}), Options{CallbackLimit: 3, Logger: zerolog.Nop()})

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/lastfm/callback", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{400, 400, 400, 429, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("status codes = %v, want %v", codes, want)
		}
	}

	// Health checks are not limited.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start

	tests := []struct {
		name       string
		db         Pinger
		wantCode   int
		wantStatus string
	}{
		{"no database", nil, http.StatusOK, "ok"},
		{"database up", pingFunc(func(context.Context) error { return nil }), http.StatusOK, "ok"},
		{"database down", pingFunc(func(context.Context) error { return errors.New("closed") }), http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = start
			srv := New(nil, Options{DB: tt.db, Logger: zerolog.Nop(), Now: func() time.Time { return now }})
			now = start.Add(90 * time.Second)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}

			var body healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status field = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Uptime != 90 {
				t.Errorf("uptime = %v, want 90", body.Uptime)
			}
			if !body.Timestamp.Equal(now) {
				t.Errorf("timestamp = %v, want %v", body.Timestamp, now)
			}
		})
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv := New(nil, Options{Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
