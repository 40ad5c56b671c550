// Package ratelimit throttles API clients per IP with token buckets.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/nomadhouse/nomadhouse/internal/middleware/realip"
)

// Config holds the configuration for rate limiting
type Config struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	// IdleTTL is how long an idle client keeps its bucket
	IdleTTL time.Duration
}

// RateLimiter hands out one token bucket per client IP. Buckets live in a
// go-cache keyed by IP and expire after IdleTTL without traffic.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  *cache.Cache
	rate     rate.Limit
	burst    int
	idle     time.Duration
	retryHdr string
}

// New creates a new RateLimiter with the given configuration
func New(cfg Config) *RateLimiter {
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	retry := 60
	if cfg.RequestsPerMin > 0 {
		retry = max(1, 60/cfg.RequestsPerMin)
	}

	return &RateLimiter{
		buckets:  cache.New(idle, idle/2),
		rate:     rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:    burst,
		idle:     idle,
		retryHdr: strconv.Itoa(retry),
	}
}

// Clients returns the number of clients currently holding a bucket
func (rl *RateLimiter) Clients() int {
	return rl.buckets.ItemCount()
}

// Allow reports whether a request from ip may proceed
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.bucket(ip).Allow()
}

func (rl *RateLimiter) bucket(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.buckets.Get(ip); ok {
		l := v.(*rate.Limiter)
		// Touch to extend the idle expiry.
		rl.buckets.Set(ip, l, rl.idle)
		return l
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	rl.buckets.Set(ip, l, rl.idle)
	return l
}

// exempt paths are probes that must never be throttled
var exempt = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// Middleware returns an HTTP middleware that rate limits requests per IP
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.Allow(realip.GetClientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", rl.retryHdr)
				w.Header().Set("X-Rate-Limit-Exceeded", "true")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "Too many requests. Please try again later.",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Middleware returns a rate limiting middleware, or a pass-through one when
// cfg.Enabled is false.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return New(cfg).Middleware()
}
