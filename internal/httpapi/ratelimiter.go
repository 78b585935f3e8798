package httpapi

import (
	"sync"
	"time"
)

// rateLimitState tracks request timestamps for a single client IP
type rateLimitState struct {
	requests []int64
}

// RateLimiter implements per-IP rate limiting with a sliding window
type RateLimiter struct {
	limits            map[string]*rateLimitState
	maxRequestsPerMin int
	mu                sync.RWMutex
	cleanupInterval   time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		limits:            make(map[string]*rateLimitState),
		maxRequestsPerMin: maxRequestsPerMinute,
		cleanupInterval:   5 * time.Minute,
		stopCleanup:       make(chan struct{}),
	}

	go rl.startCleanup()

	return rl
}

// CheckLimit checks if a request from the given IP is allowed
func (rl *RateLimiter) CheckLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()

	state, exists := rl.limits[ip]
	if !exists {
		state = &rateLimitState{}
		rl.limits[ip] = state
	}

	// Drop requests older than 1 minute (sliding window)
	valid := state.requests[:0]
	for _, reqTime := range state.requests {
		if now-reqTime < 60000 {
			valid = append(valid, reqTime)
		}
	}
	state.requests = valid

	if len(state.requests) >= rl.maxRequestsPerMin {
		return false
	}

	state.requests = append(state.requests, now)
	return true
}

// GetRetryAfter returns the number of seconds until the rate limit resets
func (rl *RateLimiter) GetRetryAfter(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	state, exists := rl.limits[ip]
	if !exists || len(state.requests) == 0 {
		return 0
	}

	now := time.Now().UnixMilli()
	oldest := state.requests[0]

	retryAfterMs := 60000 - (now - oldest)
	if retryAfterMs < 0 {
		return 0
	}

	// Round up to whole seconds
	return int((retryAfterMs + 999) / 1000)
}

// startCleanup periodically removes idle entries
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup removes IPs with no recent requests
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()

	for ip, state := range rl.limits {
		valid := state.requests[:0]
		for _, reqTime := range state.requests {
			if now-reqTime < 60000 {
				valid = append(valid, reqTime)
			}
		}

		if len(valid) == 0 {
			delete(rl.limits, ip)
		} else {
			state.requests = valid
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
