package models

import "time"

// TaskOrigin 记录任务是从哪条路径进入流水线的。
type TaskOrigin string

const (
	// OriginSync 表示进程内或 HTTP 调用方正在同步等待结果。
	OriginSync TaskOrigin = "sync"
	// OriginSource 表示任务来自轮询到的外部任务行。
	OriginSource TaskOrigin = "source"
)

// TaskDescriptor 是未经验证的原始任务描述，解析后即被丢弃。
// Action 为结构化的任务种类；Command 为旧式的自由文本命令，两者同时存在时以 Action 为准。
type TaskDescriptor struct {
	ID        string                 `json:"id"`
	SourceID  string                 `json:"source_id"`
	Action    string                 `json:"action,omitempty"`
	Command   string                 `json:"command,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Origin    TaskOrigin             `json:"-"`
}
