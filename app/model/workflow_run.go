package model

import (
	"time"

	"gorm.io/datatypes"
)

// WorkflowState 工作流状态
type WorkflowState string

const (
	StateIdle       WorkflowState = "idle"
	StateValidating WorkflowState = "validating"
	StateSubmitted  WorkflowState = "submitted"
	StatePolling    WorkflowState = "polling"
	StateUploading  WorkflowState = "uploading"
	StateMinting    WorkflowState = "minting"
	StateRecording  WorkflowState = "recording"
	StateDone       WorkflowState = "done"
	StatePartial    WorkflowState = "partial-success"
	StateError      WorkflowState = "error"
)

// IsTerminal 是否为终态
func (s WorkflowState) IsTerminal() bool {
	return s == StateDone || s == StatePartial || s == StateError
}

// Outcome 工作流最终结果
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomePartial Outcome = "partial-success"
	OutcomeError   Outcome = "error"
)

// WorkflowSummary 汇总结果
type WorkflowSummary struct {
	RunID         string            `json:"run_id"`
	TaskID        string            `json:"task_id"`
	Outcome       Outcome           `json:"outcome"`
	Generated     int               `json:"generated"`
	Uploaded      int               `json:"uploaded"`
	Minted        int               `json:"minted"`
	FailedUploads []string          `json:"failed_uploads"`
	FailedMints   []string          `json:"failed_mints"`
	Tracks        []*GeneratedTrack `json:"tracks"`
}

// WorkflowRun 持久化的工作流运行记录
type WorkflowRun struct {
	ID            uint                        `gorm:"primarykey" json:"id"`
	RunID         string                      `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	Owner         string                      `gorm:"size:64;index;not null" json:"owner"`
	TaskID        string                      `gorm:"size:100;index" json:"task_id"`
	Prompt        string                      `gorm:"type:text" json:"prompt"`
	State         WorkflowState               `gorm:"size:20;index;default:idle" json:"state"`
	Progress      int                         `gorm:"default:0" json:"progress"`
	Outcome       Outcome                     `gorm:"size:20" json:"outcome,omitempty"`
	ErrorKind     string                      `gorm:"size:50" json:"error_kind,omitempty"`
	ErrorMessage  string                      `gorm:"type:text" json:"error_message,omitempty"`
	Generated     int                         `json:"generated"`
	Uploaded      int                         `json:"uploaded"`
	Minted        int                         `json:"minted"`
	FailedUploads datatypes.JSONSlice[string] `json:"failed_uploads"`
	FailedMints   datatypes.JSONSlice[string] `json:"failed_mints"`
	StartedAt     time.Time                   `json:"started_at"`
	CompletedAt   *time.Time                  `json:"completed_at,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// TableName 指定表名
func (WorkflowRun) TableName() string {
	return "workflow_runs"
}

// ApplySummary 将汇总结果写入运行记录
func (r *WorkflowRun) ApplySummary(s *WorkflowSummary) {
	r.TaskID = s.TaskID
	r.Outcome = s.Outcome
	r.Generated = s.Generated
	r.Uploaded = s.Uploaded
	r.Minted = s.Minted
	r.FailedUploads = datatypes.JSONSlice[string](s.FailedUploads)
	r.FailedMints = datatypes.JSONSlice[string](s.FailedMints)
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	RunID    string        `json:"run_id"`
	State    WorkflowState `json:"state"`
	Progress int           `json:"progress"`
	Message  string        `json:"message,omitempty"`
}
