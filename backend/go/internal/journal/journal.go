// Package journal records one audit entry per task execution.
package journal

import (
	"context"
	"sync"

	"TaskAgent/backend/go/internal/models"
)

// Journal appends execution records. Implementations must not block the
// caller for long; the executor appends from its single worker.
type Journal interface {
	Append(ctx context.Context, entry models.JournalEntry) error
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Append(context.Context, models.JournalEntry) error { return nil }

// Memory keeps entries in order. Used by tests and local runs.
type Memory struct {
	mu      sync.Mutex
	entries []models.JournalEntry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, entry models.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *Memory) Entries() []models.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.JournalEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
