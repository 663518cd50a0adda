package model

import "time"

// RunStatus 一次音频处理任务的当前状态
type RunStatus struct {
	RunID       string    `json:"run_id"`
	UserID      int64     `json:"user_id"`
	Stage       string    `json:"stage"`
	FailedStage string    `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	NoteID      int64     `json:"note_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
