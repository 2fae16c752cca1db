package ratelimiter

import (
	"container/list"
	"sync"
	"time"

	"TaskAgent/backend/go/pkg/clock"
)

// SlidingWindowLog implements the RateLimiter interface using the sliding window log algorithm.
// It keeps a log of accepted timestamps in a sliding window.
type SlidingWindowLog struct {
	limit  int           // Maximum number of accepts allowed in the window.
	window time.Duration // The duration of the time window.
	clock  clock.Clock
	log    *list.List // Accepted timestamps, oldest first.
	mutex  sync.Mutex
}

// NewSlidingWindowLog creates a new SlidingWindowLog backed by the real clock.
func NewSlidingWindowLog(limit int, window time.Duration) *SlidingWindowLog {
	return NewSlidingWindowLogWithClock(limit, window, clock.Real{})
}

// NewSlidingWindowLogWithClock creates a SlidingWindowLog reading time from clk.
func NewSlidingWindowLogWithClock(limit int, window time.Duration, clk clock.Clock) *SlidingWindowLog {
	return &SlidingWindowLog{
		limit:  limit,
		window: window,
		clock:  clk,
		log:    list.New(),
	}
}

// Allow evicts timestamps older than the window, then records a new accept
// only if fewer than limit remain.
func (swl *SlidingWindowLog) Allow() bool {
	swl.mutex.Lock()
	defer swl.mutex.Unlock()

	now := swl.clock.Now()
	swl.evict(now)

	if swl.log.Len() < swl.limit {
		swl.log.PushBack(now)
		return true
	}
	return false
}

// Len reports how many accepts are currently inside the window.
func (swl *SlidingWindowLog) Len() int {
	swl.mutex.Lock()
	defer swl.mutex.Unlock()
	swl.evict(swl.clock.Now())
	return swl.log.Len()
}

func (swl *SlidingWindowLog) evict(now time.Time) {
	boundary := now.Add(-swl.window)
	for e := swl.log.Front(); e != nil; {
		next := e.Next()
		if !e.Value.(time.Time).After(boundary) {
			swl.log.Remove(e)
		} else {
			// Timestamps are ordered, stop at the first one inside the window.
			break
		}
		e = next
	}
}

// KeyedSlidingWindow holds one SlidingWindowLog per (source, kind) key.
// Each log carries its own mutex, so concurrent callers on different keys never contend.
type KeyedSlidingWindow struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu   sync.RWMutex
	logs map[string]*SlidingWindowLog
}

// NewKeyedSlidingWindow creates a keyed limiter permitting limit accepts per window.
func NewKeyedSlidingWindow(limit int, window time.Duration, clk clock.Clock) *KeyedSlidingWindow {
	if clk == nil {
		clk = clock.Real{}
	}
	return &KeyedSlidingWindow{
		limit:  limit,
		window: window,
		clock:  clk,
		logs:   make(map[string]*SlidingWindowLog),
	}
}

// Allow checks and, on permit, records an accept for (sourceID, kind).
func (k *KeyedSlidingWindow) Allow(sourceID, kind string) bool {
	return k.logFor(sourceID + "\x00" + kind).Allow()
}

// Count reports the accepts currently inside the window for (sourceID, kind).
// It does not create state for unseen keys.
func (k *KeyedSlidingWindow) Count(sourceID, kind string) int {
	k.mu.RLock()
	l, ok := k.logs[sourceID+"\x00"+kind]
	k.mu.RUnlock()
	if !ok {
		return 0
	}
	return l.Len()
}

// Keys reports how many keys have been seen.
func (k *KeyedSlidingWindow) Keys() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.logs)
}

func (k *KeyedSlidingWindow) logFor(key string) *SlidingWindowLog {
	k.mu.RLock()
	l, ok := k.logs[key]
	k.mu.RUnlock()
	if ok {
		return l
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok = k.logs[key]; ok {
		return l
	}
	l = NewSlidingWindowLogWithClock(k.limit, k.window, k.clock)
	k.logs[key] = l
	return l
}
