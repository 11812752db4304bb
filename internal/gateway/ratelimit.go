package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds request rates per client key (remote address). A zero
// or negative rate disables limiting entirely.
type RateLimiter struct {
	rps   float64
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a per-key limiter at rps requests per second with
// the given burst. rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		rps:     rps,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
	}
	if rl.Enabled() {
		go rl.evictLoop()
	}
	return rl
}

// Enabled reports whether limiting is active.
func (rl *RateLimiter) Enabled() bool { return rl.rps > 0 }

// Allow reports whether the request from key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.Enabled() {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

// evictLoop drops limiters for keys idle longer than 10 minutes so the map
// does not grow unbounded with one-shot clients.
func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for key, c := range rl.clients {
			if c.lastSeen.Before(cutoff) {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}
