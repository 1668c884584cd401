package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrCodeRateLimited is the error code logged for blocked requests.
// The api package serves the same code in its error bodies, so a 429
// carries one code everywhere.
const ErrCodeRateLimited = "rate_limit_exceeded"

// RateLimitConfig sets the quota for a fixed window.
type RateLimitConfig struct {
	RequestsPerWindow int           // must be > 0
	WindowDuration    time.Duration // must be > 0
}

// Validate rejects non-positive quotas and windows.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

var (
	defaultGlobalLimit = RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}

	// Ranking walks the whole candidate pool, so it is limited more
	// tightly than plain reads.
	defaultQueryLimit = RateLimitConfig{RequestsPerWindow: 30, WindowDuration: time.Minute}

	defaultMutationLimit = RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute}
)

// DefaultGlobalLimit returns a copy of the server-wide limit, 100 requests per minute.
func DefaultGlobalLimit() RateLimitConfig { return defaultGlobalLimit }

// DefaultQueryLimit returns a copy of the ranking endpoint limit, 30 requests per minute.
func DefaultQueryLimit() RateLimitConfig { return defaultQueryLimit }

// DefaultMutationLimit returns a copy of the limit for relationship and
// attendance mutations, 60 requests per minute.
func DefaultMutationLimit() RateLimitConfig { return defaultMutationLimit }

// RateLimitStore tracks per-key request counts. Implementations exist
// for in-process maps and Redis.
type RateLimitStore interface {
	// Allow reports whether a request under key fits the quota.
	// remaining is the quota left in the current window after this
	// request. retryAfter is the number of seconds until the window
	// resets, zero when the request is allowed.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore counts requests in fixed windows held in a
// process-local map. Safe for concurrent use.
type InMemoryRateLimitStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// NewInMemoryRateLimitStore creates a new in-memory rate limit store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{buckets: make(map[string]*bucket)}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	b, ok := s.buckets[key]
	if !ok || now.After(b.windowEnd) {
		s.buckets[key] = &bucket{count: 1, windowEnd: now.Add(config.WindowDuration)}
		return true, config.RequestsPerWindow - 1, 0
	}

	if b.count < config.RequestsPerWindow {
		b.count++
		return true, config.RequestsPerWindow - b.count, 0
	}

	retryAfter := int(b.windowEnd.Sub(now).Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// Cleanup drops buckets whose window has passed. Run it periodically,
// at a few multiples of the longest configured WindowDuration.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, b := range s.buckets {
		if now.After(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys by client IP. Proxy headers win over the socket
// address: the first X-Forwarded-For entry, then X-Real-IP, then
// RemoteAddr with the port stripped.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}

// UserKeyFunc keys by the authenticated user ID when one is on the
// context, falling back to the client IP for anonymous traffic.
func UserKeyFunc() KeyFunc {
	byIP := IPKeyFunc()
	return func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != "" {
			return "user:" + id
		}
		return "ip:" + byIP(r)
	}
}

// keyType extracts the key prefix ("user" or "ip") for metric labels.
func keyType(key string) string {
	if prefix, _, found := strings.Cut(key, ":"); found {
		return prefix
	}
	return "ip"
}

// RateLimiter answers 429 once the key's quota is spent. Every response
// carries X-RateLimit-Limit and X-RateLimit-Remaining; blocked ones add
// Retry-After and an X-RateLimit-Reset Unix timestamp. metrics may be
// nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)

			if metrics != nil {
				metrics.IncRateLimitRequests(normalizePath(r.URL.Path), keyType(key))
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked(normalizePath(r.URL.Path), keyType(key))
				}
				UpdateResponseContext(w, SetErrorCode(r.Context(), ErrCodeRateLimited))

				reset := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
