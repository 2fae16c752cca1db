package models

import "time"

// ErrorInfo 存储了关于错误的结构化信息。
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"` // 错误分类，例如 "AdapterFailure"
	Stack   string `json:"stack,omitempty"`
}

// JournalEntry 是每次任务执行写入审计日志的一条记录，无论成功与否。
type JournalEntry struct {
	TaskID     string     `json:"task_id"`
	SourceID   string     `json:"source_id"`
	Kind       string     `json:"kind"`
	Origin     TaskOrigin `json:"origin"`
	Success    bool       `json:"success"`
	ErrorCode  ErrorCode  `json:"error_code,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Note       string     `json:"note,omitempty"`
}
