// Package consent answers whether a source has granted the agent permission
// to act. Every unreadable answer is a denial.
package consent

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Checker reports whether sourceID has granted consent.
type Checker interface {
	Allowed(ctx context.Context, sourceID string) (bool, error)
}

// Getter reads a single key.
type Getter interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// Key is the flag key read for sourceID.
func Key(sourceID string) string { return "consent:" + sourceID }

// KV reads consent flags from a key-value store such as Redis.
type KV struct {
	store Getter
}

func NewKV(store Getter) *KV { return &KV{store: store} }

func (k *KV) Allowed(ctx context.Context, sourceID string) (bool, error) {
	value, found, err := k.store.Get(ctx, Key(sourceID))
	if err != nil {
		return false, fmt.Errorf("read consent flag: %w", err)
	}
	if !found {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true":
		return true, nil
	}
	return false, nil
}

// Static holds flags in memory.
type Static struct {
	mu    sync.RWMutex
	flags map[string]bool
}

func NewStatic(granted ...string) *Static {
	s := &Static{flags: make(map[string]bool)}
	for _, id := range granted {
		s.flags[id] = true
	}
	return s
}

// Set grants or revokes consent for sourceID.
func (s *Static) Set(sourceID string, allowed bool) {
	s.mu.Lock()
	s.flags[sourceID] = allowed
	s.mu.Unlock()
}

func (s *Static) Allowed(_ context.Context, sourceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[sourceID], nil
}

// Check collapses a checker answer into a single decision. Errors deny.
func Check(ctx context.Context, c Checker, sourceID string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("no consent checker configured")
	}
	ok, err := c.Allowed(ctx, sourceID)
	if err != nil {
		return false, err
	}
	return ok, nil
}
