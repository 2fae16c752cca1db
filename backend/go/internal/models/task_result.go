package models

import "time"

// TaskResult 每个任务执行恰好产生一次，创建后不再修改。
type TaskResult struct {
	TaskID     string           `json:"task_id"`
	Kind       string           `json:"kind,omitempty"`
	Success    bool             `json:"success"`
	Data       map[string]Value `json:"data,omitempty"`
	ErrorCode  ErrorCode        `json:"error_code,omitempty"`
	Reason     string           `json:"reason,omitempty"` // 适配器给出的具体错误码
	Detail     string           `json:"detail,omitempty"`
	StartedAt  time.Time        `json:"started_at,omitempty"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
}

// Succeeded 构造一个成功的结果。
func Succeeded(taskID, kind string, data map[string]Value) TaskResult {
	return TaskResult{TaskID: taskID, Kind: kind, Success: true, Data: data}
}

// Failed 构造一个失败的结果。
func Failed(taskID, kind string, code ErrorCode, reason, detail string) TaskResult {
	return TaskResult{TaskID: taskID, Kind: kind, ErrorCode: code, Reason: reason, Detail: detail}
}

// Response 返回给调用方的结果形状：总是包含 success，失败时才有 error/reason/detail。
// Data 中与保留字段同名的键会被忽略。
func (r TaskResult) Response() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Data)+4)
	for k, v := range r.Data {
		switch k {
		case "success", "error", "reason", "detail":
			continue
		}
		out[k] = v.Interface()
	}
	out["success"] = r.Success
	if !r.Success {
		out["error"] = string(r.ErrorCode)
		if r.Reason != "" {
			out["reason"] = r.Reason
		}
		if r.Detail != "" {
			out["detail"] = r.Detail
		}
	}
	return out
}

// Status 返回该结果对应的任务行终态。
func (r TaskResult) Status() TaskStatus {
	if r.Success {
		return TaskStatusDone
	}
	return TaskStatusFailed
}
