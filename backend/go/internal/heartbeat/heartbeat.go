// Package heartbeat periodically publishes that the agent is alive.
package heartbeat

import (
	"context"
	"encoding/json"
	"time"

	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/pkg/clock"
	"TaskAgent/backend/go/pkg/logger"
)

// Setter writes a key with an expiry.
type Setter interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Beat is the JSON value stored under Key.
type Beat struct {
	SourceID   string    `json:"source_id"`
	At         time.Time `json:"at"`
	QueueDepth int       `json:"queue_depth"`
}

// Key is where the beat for sourceID is stored.
func Key(sourceID string) string { return "heartbeat:" + sourceID }

// Beacon writes a beat every interval. The key expires after three missed
// beats.
type Beacon struct {
	sourceID string
	interval time.Duration
	store    Setter
	depth    func() int
	clock    clock.Clock
	log      *logger.Logger
}

func NewBeacon(sourceID string, interval time.Duration, store Setter, depth func() int, log *logger.Logger) *Beacon {
	if depth == nil {
		depth = func() int { return 0 }
	}
	if log == nil {
		log = logger.New("heartbeat", "", sourceID)
	}
	return &Beacon{sourceID: sourceID, interval: interval, store: store, depth: depth, clock: clock.Real{}, log: log}
}

// Beat writes a single heartbeat.
func (b *Beacon) Beat(ctx context.Context) error {
	data, err := json.Marshal(Beat{SourceID: b.sourceID, At: b.clock.Now().UTC(), QueueDepth: b.depth()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.interval)
	defer cancel()
	return b.store.Set(ctx, Key(b.sourceID), string(data), 3*b.interval)
}

// Run beats immediately and then on every tick until ctx ends.
func (b *Beacon) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		if err := b.Beat(ctx); err != nil && ctx.Err() == nil {
			b.log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Heartbeat write failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
