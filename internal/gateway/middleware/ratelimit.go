package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerMinute is the sustained request budget per client.
	RequestsPerMinute int
	// Burst is the maximum burst size.
	Burst int
	// Enabled toggles rate limiting.
	Enabled bool
	// CleanupInterval is how often idle buckets are dropped.
	CleanupInterval time.Duration
	// ExemptPaths are path prefixes never throttled. Approval decisions
	// must always land: a throttled decision leaves the run parked until
	// its request times out denied.
	ExemptPaths []string
}

// DefaultRateLimiterConfig returns the default rate limiter configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 60,
		Burst:             10,
		Enabled:           true,
		CleanupInterval:   5 * time.Minute,
		ExemptPaths:       []string{"/api/v1/health", "/api/v1/approvals", "/ws"},
	}
}

// tokenBucket is a per-client token bucket.
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// RateLimiter provides per-client rate limiting keyed by IP.
type RateLimiter struct {
	config  RateLimiterConfig
	buckets map[string]*tokenBucket
	mu      sync.RWMutex
	stopCh  chan struct{}
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
		stopCh:  make(chan struct{}),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		go rl.cleanup()
	}

	return rl
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// cleanup periodically drops buckets idle for two cleanup intervals.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, bucket := range rl.buckets {
				bucket.mu.Lock()
				if now.Sub(bucket.lastRefill) > rl.config.CleanupInterval*2 {
					delete(rl.buckets, ip)
				}
				bucket.mu.Unlock()
			}
			rl.mu.Unlock()
		}
	}
}

// getBucket retrieves or creates the bucket for one client.
func (rl *RateLimiter) getBucket(ip string) *tokenBucket {
	rl.mu.RLock()
	bucket, ok := rl.buckets[ip]
	rl.mu.RUnlock()

	if ok {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, ok = rl.buckets[ip]; ok {
		return bucket
	}

	bucket = &tokenBucket{
		tokens:     float64(rl.config.Burst),
		lastRefill: time.Now(),
	}
	rl.buckets[ip] = bucket
	return bucket
}

// Allow reports whether a request from ip may proceed, plus the remaining
// tokens and the time at which the bucket refills.
func (rl *RateLimiter) Allow(ip string) (bool, int, time.Time) {
	if !rl.config.Enabled {
		return true, rl.config.RequestsPerMinute, time.Now().Add(time.Minute)
	}

	bucket := rl.getBucket(ip)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	now := time.Now()

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens += elapsed * (float64(rl.config.RequestsPerMinute) / 60.0)
	bucket.lastRefill = now

	if bucket.tokens > float64(rl.config.Burst) {
		bucket.tokens = float64(rl.config.Burst)
	}

	tokensNeeded := float64(rl.config.Burst) - bucket.tokens
	secondsToFull := tokensNeeded / (float64(rl.config.RequestsPerMinute) / 60.0)
	resetTime := now.Add(time.Duration(secondsToFull) * time.Second)

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, int(bucket.tokens), resetTime
	}

	return false, 0, resetTime
}

// exempt reports whether a path bypasses throttling.
func (rl *RateLimiter) exempt(path string) bool {
	for _, prefix := range rl.config.ExemptPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RateLimit returns a middleware enforcing the limit.
func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled || rl.exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		allowed, remaining, resetTime := rl.Allow(ip)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(resetTime).Seconds())+1, 10))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
