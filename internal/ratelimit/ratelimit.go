// Package ratelimit provides a keyed token-bucket limiter and an HTTP
// middleware that applies it per client IP.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"
)

// idleTTL is how long an unused key keeps its bucket.
const idleTTL = 10 * time.Minute

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent rate limiter; keys unused for
// idleTTL are forgotten.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// New creates a new keyed rate limiter.
// rps: requests per second allowed.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](0, nil, idleTTL),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// PerInterval creates a limiter allowing n requests per interval, all of
// which may be spent at once.
func PerInterval(n int, interval time.Duration) *KeyedRateLimiter {
	return New(float64(n)/interval.Seconds(), n)
}

// Allow checks if a request for the given key should be allowed.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or ctx ends.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// getLimiter returns the limiter for a key, creating one if needed. A hit
// refreshes the key's idle timer.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	if limiter, ok := krl.limiters.Get(key); ok {
		krl.limiters.Add(key, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(krl.limit, krl.burst)
	krl.limiters.Add(key, limiter)
	return limiter
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
// Put it after chi's RealIP so proxies are honoured.
func Middleware(limiter *KeyedRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			if !limiter.Allow(key) {
				hlog.FromRequest(r).Warn().
					Str("ip", key).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
