package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		keys     []string
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			keys:     []string{"a", "a", "a"},
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			keys:     []string{"a", "a", "a", "a", "a"},
			wantPass: 2,
		},
		{
			name:     "different keys are independent",
			rps:      1,
			burst:    1,
			keys:     []string{"a", "b", "c", "a"},
			wantPass: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)

			passed := 0
			for _, k := range tt.keys {
				if rl.Allow(k) {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(20, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rl.Wait(ctx, "k"); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(ctx, "k"); err != nil {
		t.Fatalf("second Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second Wait() returned after %v, want it to block", elapsed)
	}
}

func TestPerInterval(t *testing.T) {
	rl := PerInterval(20, time.Minute)

	for i := 0; i < 20; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d rejected within limit", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("21st request allowed")
	}
}

func TestMiddleware(t *testing.T) {
	handler := Middleware(PerInterval(2, time.Minute))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		remote string
		want   int
	}{
		{"10.0.0.1:5000", http.StatusOK},
		{"10.0.0.1:5001", http.StatusOK},
		{"10.0.0.1:5002", http.StatusTooManyRequests},
		{"10.0.0.2:5000", http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/lastfm/callback", nil)
		req.RemoteAddr = tt.remote
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.remote, rec.Code, tt.want)
		}
	}
}
