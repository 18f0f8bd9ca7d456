package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/templui/habits/internal/ctxkeys"
	"golang.org/x/time/rate"
)

// RateLimiter keeps a token bucket per client key.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter refills each key's bucket at limit and allows bursts of burst.
func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*client),
		limit:   limit,
		burst:   max(burst, 1),
	}

	// Start cleanup goroutine to prevent memory leak
	go rl.cleanupLoop()

	return rl
}

// Allow reports whether a request from key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.cleanup(time.Now())
	}
}

// cleanup drops keys whose bucket has refilled and that have gone quiet.
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	idle := rl.refillTime()
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(rl.clients, key)
		}
	}
}

// refillTime is how long an empty bucket takes to fill up, with a floor of
// ten minutes.
func (rl *RateLimiter) refillTime() time.Duration {
	const floor = 10 * time.Minute
	if rl.limit <= 0 || rl.limit == rate.Inf {
		return floor
	}
	full := time.Duration(float64(rl.burst) / float64(rl.limit) * float64(time.Second))
	return max(full, floor)
}

// RateLimitAuth creates middleware for sign-in endpoints
// Limits: bursts of 10 per IP, refilling one every 90 seconds
func RateLimitAuth() func(http.HandlerFunc) http.HandlerFunc {
	limiter := NewRateLimiter(rate.Every(90*time.Second), 10)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !limiter.Allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
				return
			}

			next(w, r)
		}
	}
}

// NewAPIRateLimiter allows perSecond sustained requests with the given burst.
func NewAPIRateLimiter(perSecond, burst int) *RateLimiter {
	return NewRateLimiter(rate.Limit(perSecond), burst)
}

// Limit wraps an API handler. Clients are keyed by user ID when authenticated,
// otherwise by IP, so it must run after AuthMiddleware.
func (rl *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := ctxkeys.UserID(r.Context())
		if key == "" {
			key = "ip:" + clientIP(r)
		}

		if !rl.Allow(key) {
			slog.Warn("api rate limit exceeded", "key", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		next(w, r)
	}
}

// clientIP extracts the real client IP, honoring proxy headers
func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header (proxy/load balancer)
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
