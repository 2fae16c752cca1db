package agent

// Metadata 描述代理的身份和当前可用的能力，由健康检查接口返回。
type Metadata struct {
	SourceID     string          `json:"source_id"`
	Version      string          `json:"version"`
	Kinds        []string        `json:"kinds"`        // 结构化 action 字段接受的任务种类
	Capabilities map[string]bool `json:"capabilities"` // 平台是否提供对应的能力
}

// Health 是某一时刻的运行状态快照。
type Health struct {
	Metadata
	QueueDepth     int    `json:"queue_depth"`
	PendingCallers int    `json:"pending_callers"`
	PollState      string `json:"poll_state,omitempty"`
	PollCycles     int64  `json:"poll_cycles,omitempty"`
	PollSkipped    int64  `json:"poll_skipped,omitempty"`
}
