// internal/ratelimit/limiter.go
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// ClientLimiter provides per-client-IP rate limiting on the HTTP front
// door, ambient abuse protection that sits in front of (not as part of)
// the extraction admission bound. It uses the token bucket algorithm for
// smooth rate limiting, adapted from a per-domain limiter to a per-client
// one.
type ClientLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perIP    rate.Limit // Requests per second per client
	burst    int        // Burst capacity
}

// NewClientLimiter creates a new rate limiter with the specified per-client rate
func NewClientLimiter(requestsPerSecond float64, burst int) *ClientLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2.0
	}
	if burst <= 0 {
		burst = 4
	}

	return &ClientLimiter{
		limiters: make(map[string]*rate.Limiter),
		perIP:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Allow checks if a request from the given client can proceed immediately without blocking
func (cl *ClientLimiter) Allow(clientIP string) bool {
	if clientIP == "" {
		return true
	}

	limiter := cl.getLimiter(clientIP)
	return limiter.Allow()
}

// getLimiter returns or creates a rate limiter for the given client
func (cl *ClientLimiter) getLimiter(clientIP string) *rate.Limiter {
	cl.mu.RLock()
	limiter, exists := cl.limiters[clientIP]
	cl.mu.RUnlock()

	if exists {
		return limiter
	}

	// Create new limiter
	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := cl.limiters[clientIP]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(cl.perIP, cl.burst)
	cl.limiters[clientIP] = limiter

	return limiter
}
