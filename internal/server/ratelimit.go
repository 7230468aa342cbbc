package server

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cvoptimizer/internal/errors"
)

// clientLimiter is the token bucket of one client plus its last activity
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client key (IP or API key).
// Buckets idle for longer than the eviction window are dropped by Run.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
	logger  *errors.Logger
}

// NewRateLimiter creates a limiter allowing requestsPerMin per client with
// the given burst. window is the idle time after which a client is forgotten.
func NewRateLimiter(requestsPerMin, burst int, window time.Duration, logger *errors.Logger) *RateLimiter {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(float64(requestsPerMin) / 60.0),
		burst:   burst,
		window:  window,
		now:     time.Now,
		logger:  logger,
	}
}

// Allow consumes a token for key and reports whether the request may proceed
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// RetryAfter returns the Retry-After header value for a rejected client:
// the seconds until one token refills.
func (l *RateLimiter) RetryAfter() string {
	if l.rate <= 0 {
		return strconv.Itoa(int(l.window.Seconds()))
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(l.rate))))
}

// Stats returns current rate limiter statistics
func (l *RateLimiter) Stats() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]any{
		"enabled":         true,
		"active_clients":  len(l.clients),
		"rate_per_second": float64(l.rate),
		"rate_per_minute": float64(l.rate) * 60.0,
		"burst_capacity":  l.burst,
		"eviction_window": l.window.String(),
	}
}

// Run evicts idle clients until ctx is done
func (l *RateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-ctx.Done():
			return nil
		}
	}
}

// evictIdle removes clients not seen within the window
func (l *RateLimiter) evictIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	evicted := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			evicted++
		}
	}

	if l.logger != nil {
		l.logger.Debug("Rate limiter eviction completed",
			"evicted", evicted,
			"remaining_clients", len(l.clients))
	}
	return evicted
}

// getRateLimitKey returns the bucket key for r and its kind ("api_key" or "ip")
func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) (string, string) {
	if byAPIKey {
		if apiKey := extractAPIKey(r); apiKey != "" {
			return "api:" + apiKey, "api_key"
		}
	}
	if byIP {
		return "ip:" + getClientIP(r), "ip"
	}
	return "", ""
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP parses the first valid IP from a comma-separated list
func parseFirstIP(ips string) string {
	for ip := range strings.SplitSeq(ips, ",") {
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ""
}
