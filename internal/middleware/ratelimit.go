package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAuthRPM   = 10
	maxTrackedIPs    = 1000
	idleLimiterAfter = 10 * time.Minute
)

// RateLimits are requests per minute per client IP. A non-positive General or
// Deletion value disables that tier; Auth always falls back to a default.
type RateLimits struct {
	General  int
	Auth     int
	Deletion int
}

type tier int

const (
	tierGeneral tier = iota
	tierAuth
	tierDeletion
	tierExempt
)

type clientBuckets struct {
	byTier   [3]*rate.Limiter
	lastSeen time.Time
}

type RateLimitMiddleware struct {
	limits  RateLimits
	mu      sync.Mutex
	clients map[string]*clientBuckets
}

func NewRateLimitMiddleware(limits RateLimits) *RateLimitMiddleware {
	if limits.Auth <= 0 {
		limits.Auth = defaultAuthRPM
	}
	return &RateLimitMiddleware{
		limits:  limits,
		clients: map[string]*clientBuckets{},
	}
}

// classify maps a request onto its bucket. Deletion POSTs never draw from the general budget.
func classify(r *http.Request) tier {
	path := strings.ToLower(r.URL.Path)
	switch {
	case path == "/health", path == "/metrics", strings.HasPrefix(path, "/api/v1/ws"):
		return tierExempt
	case strings.HasPrefix(path, "/api/v1/auth"):
		return tierAuth
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/api/v1/lists/") && strings.Contains(path, "/deletion"):
		return tierDeletion
	default:
		return tierGeneral
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := classify(r)
		if t == tierExempt {
			next.ServeHTTP(w, r)
			return
		}

		limiter := m.bucket(extractClientIP(r), t)
		reservation := limiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) bucket(clientIP string, t tier) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	buckets, exists := m.clients[clientIP]
	if !exists {
		buckets = &clientBuckets{byTier: [3]*rate.Limiter{
			tierGeneral:  perMinute(m.limits.General),
			tierAuth:     perMinute(m.limits.Auth),
			tierDeletion: perMinute(m.limits.Deletion),
		}}
		m.clients[clientIP] = buckets
	}
	buckets.lastSeen = now
	m.evictIdleLocked(now)

	return buckets.byTier[t]
}

func perMinute(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

func (m *RateLimitMiddleware) evictIdleLocked(now time.Time) {
	if len(m.clients) < maxTrackedIPs {
		return
	}
	cutoff := now.Add(-idleLimiterAfter)
	for ip, buckets := range m.clients {
		if buckets.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

// extractClientIP trusts the first X-Forwarded-For hop.
func extractClientIP(r *http.Request) string {
	if forwarded, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(forwarded) != "" {
		return strings.TrimSpace(forwarded)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
