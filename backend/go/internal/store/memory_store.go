package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"TaskAgent/backend/go/internal/models"
)

// MemoryStore keeps task rows in process. Used by tests and local runs
// without MongoDB.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*models.TaskRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*models.TaskRecord)}
}

func (s *MemoryStore) FetchPending(ctx context.Context, sourceID string, limit int) ([]models.TaskRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TaskRecord
	for _, r := range s.rows {
		if r.SourceID == sourceID && r.Status == models.TaskStatusPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkInProgress(_ context.Context, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[taskID]
	if !ok || r.Status != models.TaskStatusPending {
		return false, nil
	}
	r.Status = models.TaskStatusInProgress
	r.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) Complete(_ context.Context, taskID string, status models.TaskStatus, result models.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[taskID]
	if !ok || r.Status.Terminal() {
		return ErrNotFound
	}
	r.Result, r.Error = completion(result)
	r.Status = status
	r.UpdatedAt = time.Now()
	r.CompletedAt = r.UpdatedAt
	return nil
}

func (s *MemoryStore) Create(_ context.Context, rec *models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[rec.ID]; ok {
		return fmt.Errorf("task %s already exists", rec.ID)
	}
	if rec.Status == "" {
		rec.Status = models.TaskStatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	cp := *rec
	s.rows[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, taskID string) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}
