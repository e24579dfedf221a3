package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different endpoints
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for an endpoint
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	return limiter.Allow()
}

// Limiter names for the Reddit API surfaces the agent touches
const (
	LimiterSubmit = "reddit_submit"
	LimiterSearch = "reddit_search"
	LimiterInfo   = "reddit_info"
	LimiterToken  = "reddit_token"
)

// NewDefaultLimiter creates a limiter tuned to Reddit's OAuth API budget
// (60 requests per minute per client) with the search bucket slowed to
// roughly one query every 1.2 seconds to space out keyword scans.
func NewDefaultLimiter() *MultiLimiter {
	m := NewMultiLimiter()

	// Submissions are rare; stay well under the write budget
	m.AddLimiter(LimiterSubmit, 0.5, 2)

	// One keyword search every ~1.2s
	m.AddLimiter(LimiterSearch, 1.0/1.2, 1)

	// Batched info reads, one call covers up to 100 posts
	m.AddLimiter(LimiterInfo, 1, 2)

	// Token grants
	m.AddLimiter(LimiterToken, 1, 2)

	return m
}
