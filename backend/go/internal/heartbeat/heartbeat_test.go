package heartbeat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"TaskAgent/backend/go/pkg/clock"
	"TaskAgent/backend/go/pkg/logger"
)

type recordingSetter struct {
	mu   sync.Mutex
	keys map[string]string
	ttls map[string]time.Duration
}

func (r *recordingSetter) Set(_ context.Context, key, value string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key] = value
	r.ttls[key] = ttl
	return nil
}

func TestBeat(t *testing.T) {
	store := &recordingSetter{keys: map[string]string{}, ttls: map[string]time.Duration{}}
	b := NewBeacon("dev", 30*time.Second, store, func() int { return 3 }, logger.Discard())
	b.clock = clock.NewManual(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	if err := b.Beat(context.Background()); err != nil {
		t.Fatalf("Beat failed: %v", err)
	}
	raw, ok := store.keys["heartbeat:dev"]
	if !ok {
		t.Fatalf("Expected heartbeat key to be written")
	}
	if store.ttls["heartbeat:dev"] != 90*time.Second {
		t.Errorf("Expected TTL 90s, got %v", store.ttls["heartbeat:dev"])
	}
	var beat Beat
	if err := json.Unmarshal([]byte(raw), &beat); err != nil {
		t.Fatal(err)
	}
	if beat.SourceID != "dev" || beat.QueueDepth != 3 || beat.At.Year() != 2026 {
		t.Errorf("Unexpected beat: %+v", beat)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &recordingSetter{keys: map[string]string{}, ttls: map[string]time.Duration{}}
	b := NewBeacon("dev", time.Hour, store, nil, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.keys["heartbeat:dev"]; !ok {
		t.Errorf("Expected an immediate beat")
	}
}
