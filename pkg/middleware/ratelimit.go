package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ipLimiter tracks a rate limiter and its last access time
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per client IP, evicting idle clients
type RateLimiter struct {
	limiters        map[string]*ipLimiter
	mu              sync.Mutex
	rate            rate.Limit
	burst           int
	maxSize         int
	cleanupInterval time.Duration
	logger          *zap.Logger
	now             func() time.Time
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop
// requestsPerSecond: sustained requests per second per IP
// burst: max burst size
func NewRateLimiter(requestsPerSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		limiters:        make(map[string]*ipLimiter),
		rate:            rate.Limit(requestsPerSecond),
		burst:           burst,
		maxSize:         10000,
		cleanupInterval: 5 * time.Minute,
		logger:          logger,
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			if removed := rl.cleanup(); removed > 100 {
				rl.logger.Info("Rate limiter evicted idle clients", zap.Int("removed", removed))
			}
		}
	}
}

// cleanup removes clients idle for longer than the cleanup interval
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cleanupInterval)
	removed := 0
	for ip, limiter := range rl.limiters {
		if limiter.lastAccess.Before(cutoff) {
			delete(rl.limiters, ip)
			removed++
		}
	}
	return removed
}

// Shutdown stops the cleanup goroutine
func (rl *RateLimiter) Shutdown() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow reports whether ip may make another request now
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.getLimiter(ip).Allow()
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if limiter, exists := rl.limiters[ip]; exists {
		limiter.lastAccess = now
		return limiter.limiter
	}

	if len(rl.limiters) >= rl.maxSize {
		rl.evictOldestLocked()
	}

	entry := &ipLimiter{
		limiter:    rate.NewLimiter(rl.rate, rl.burst),
		lastAccess: now,
	}
	rl.limiters[ip] = entry
	return entry.limiter
}

func (rl *RateLimiter) evictOldestLocked() {
	var (
		oldestIP   string
		oldestTime time.Time
	)
	for ip, lim := range rl.limiters {
		if oldestIP == "" || lim.lastAccess.Before(oldestTime) {
			oldestIP = ip
			oldestTime = lim.lastAccess
		}
	}
	delete(rl.limiters, oldestIP)
}

// Middleware rejects clients over their limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !rl.Allow(ip) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests. Please try again shortly.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// ignored; deployments behind a proxy should rewrite RemoteAddr upstream.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
