package ratelimiter

import (
	"sync"
	"time"

	"TaskAgent/backend/go/pkg/clock"
)

// TokenBucket implements the RateLimiter interface using the token bucket algorithm.
// It allows for bursts of requests up to the bucket's capacity.
type TokenBucket struct {
	rate          float64   // Tokens generated per second.
	capacity      float64   // Maximum number of tokens in the bucket.
	tokens        float64   // Current number of tokens in the bucket.
	lastTokenTime time.Time // Last refill time.
	clock         clock.Clock
	mutex         sync.Mutex
}

// NewTokenBucket creates a new TokenBucket.
// rate: the number of tokens to generate per second.
// capacity: the maximum number of tokens (burst size).
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	return NewTokenBucketWithClock(rate, capacity, clock.Real{})
}

// NewTokenBucketWithClock creates a TokenBucket reading time from clk.
func NewTokenBucketWithClock(rate float64, capacity int, clk clock.Clock) *TokenBucket {
	return &TokenBucket{
		rate:          rate,
		capacity:      float64(capacity),
		tokens:        float64(capacity), // Start with a full bucket.
		lastTokenTime: clk.Now(),
		clock:         clk,
	}
}

// Allow refills the bucket for the elapsed time and consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := tb.clock.Now()
	if elapsed := now.Sub(tb.lastTokenTime); elapsed > 0 {
		tb.tokens += elapsed.Seconds() * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTokenTime = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}
