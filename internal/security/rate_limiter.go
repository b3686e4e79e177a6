// Package security protects the HTTP surface from abusive clients.
package security

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raaihank/pdf-redactor/internal/config"
)

// RateLimiter implements per-client token bucket rate limiting
type RateLimiter struct {
	config  config.RateLimitConfig
	clients map[string]*client
	mu      sync.Mutex
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// Allow reports whether a request from the given client may proceed
func (r *RateLimiter) Allow(clientID string) bool {
	if !r.config.Enabled {
		return true
	}
	now := r.now()
	return r.getClient(clientID, now).limiter.AllowN(now, 1)
}

// getClient gets or creates the limiter of a client
func (r *RateLimiter) getClient(clientID string, now time.Time) *client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[clientID]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)}
		r.clients[clientID] = c
	}
	c.lastSeen = now
	return c
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Cleanup forgets clients not seen for MaxIdle and returns how many were removed
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.config.MaxIdle)
	removed := 0
	for id, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, id)
			removed++
		}
	}
	return removed
}

// Run cleans up idle clients every CleanupInterval until ctx is done
func (r *RateLimiter) Run(ctx context.Context) {
	interval := r.config.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup()
		}
	}
}
