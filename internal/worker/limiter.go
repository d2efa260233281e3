package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter rate-limits work per key, e.g. per media type in batch mode
// or per client address in the HTTP server
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter. A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until key may proceed or ctx ends
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

// Allow reports whether key may proceed now, consuming a token if so
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter

	return limiter
}

// SetRate overrides the limit for a single key
func (l *Limiter) SetRate(key string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[key] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Forget drops the state kept for key
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}
