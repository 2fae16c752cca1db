package models

import (
	"time"
)

// TaskStatus 定义了任务行的几种可能状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal 报告状态是否为终态。
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// TaskRecord 代表外部任务来源中的一行
type TaskRecord struct {
	ID          string                 `bson:"_id" json:"id"`
	SourceID    string                 `bson:"source_id" json:"source_id"`
	Action      string                 `bson:"action,omitempty" json:"action,omitempty"`
	Command     string                 `bson:"command,omitempty" json:"command,omitempty"`
	Payload     map[string]interface{} `bson:"payload,omitempty" json:"payload,omitempty"`
	Status      TaskStatus             `bson:"status" json:"status"`
	Result      map[string]interface{} `bson:"result,omitempty" json:"result,omitempty"`
	Error       string                 `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	CompletedAt time.Time              `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Descriptor 将任务行转换为待解析的描述符。
func (r *TaskRecord) Descriptor() TaskDescriptor {
	return TaskDescriptor{
		ID:        r.ID,
		SourceID:  r.SourceID,
		Action:    r.Action,
		Command:   r.Command,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
		Origin:    OriginSource,
	}
}
