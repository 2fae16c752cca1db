package ratelimiter

// RateLimiter is the interface for unkeyed rate limiting.
// Allow returns true if a request is allowed, and false otherwise.
type RateLimiter interface {
	Allow() bool
}

// KeyedLimiter caps accepted calls per (source, kind) pair.
type KeyedLimiter interface {
	Allow(sourceID, kind string) bool
}

// Unlimited is a KeyedLimiter that permits every call.
type Unlimited struct{}

func (Unlimited) Allow(string, string) bool { return true }
