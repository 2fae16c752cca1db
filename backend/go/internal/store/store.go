// Package store persists task rows for the poll loop.
package store

import (
	"context"
	"errors"

	"TaskAgent/backend/go/internal/models"
)

// ErrNotFound is returned when a task row does not exist.
var ErrNotFound = errors.New("task not found")

// TaskStore is the task source contract plus the writes used to enqueue rows.
type TaskStore interface {
	FetchPending(ctx context.Context, sourceID string, limit int) ([]models.TaskRecord, error)
	MarkInProgress(ctx context.Context, taskID string) (bool, error)
	Complete(ctx context.Context, taskID string, status models.TaskStatus, result models.TaskResult) error
	Create(ctx context.Context, rec *models.TaskRecord) error
	GetByID(ctx context.Context, taskID string) (*models.TaskRecord, error)
}

func completion(result models.TaskResult) (map[string]interface{}, string) {
	var errCode string
	if !result.Success {
		errCode = string(result.ErrorCode)
	}
	return result.Response(), errCode
}
