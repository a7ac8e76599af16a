package model

import (
	"strings"
	"unicode/utf8"
)

// MinPromptLength 提示词最小长度（按字符计）
const MinPromptLength = 10

// VocalType 人声类型
type VocalType string

const (
	VocalAuto   VocalType = "auto"
	VocalMale   VocalType = "male"
	VocalFemale VocalType = "female"
	VocalNone   VocalType = "none"
)

// ModelVersion 生成模型版本
type ModelVersion string

const (
	ModelV3_5 ModelVersion = "V3_5"
	ModelV4   ModelVersion = "V4"
	ModelV4_5 ModelVersion = "V4_5"
	ModelV5   ModelVersion = "V5"
)

// DefaultModel 未指定时使用的模型
const DefaultModel = ModelV4_5

// GenerationRequest 用户提交的生成请求，提交后不可修改
type GenerationRequest struct {
	Prompt       string       `json:"prompt" binding:"required"`
	Instrumental bool         `json:"instrumental"`
	VocalType    VocalType    `json:"vocal_type"`
	Model        ModelVersion `json:"model"`

	// 高级模式
	CustomMode bool   `json:"custom_mode"`
	Title      string `json:"title"`
	Lyrics     string `json:"lyrics"`
	Style      string `json:"style"`
}

// Validate 校验请求，失败时返回 ErrValidation 类错误
func (r GenerationRequest) Validate() error {
	prompt := strings.TrimSpace(r.Prompt)
	if prompt == "" {
		return NewPipelineError(ErrValidation, "提示词不能为空")
	}
	if utf8.RuneCountInString(prompt) < MinPromptLength {
		return NewPipelineError(ErrValidation, "提示词至少需要 10 个字符")
	}

	switch r.VocalType {
	case "", VocalAuto, VocalMale, VocalFemale, VocalNone:
	default:
		return NewPipelineError(ErrValidation, "不支持的人声类型: "+string(r.VocalType))
	}

	switch r.Model {
	case "", ModelV3_5, ModelV4, ModelV4_5, ModelV5:
	default:
		return NewPipelineError(ErrValidation, "不支持的模型版本: "+string(r.Model))
	}

	if r.CustomMode && !r.Instrumental && strings.TrimSpace(r.Lyrics) == "" && strings.TrimSpace(r.Style) == "" {
		return NewPipelineError(ErrValidation, "高级模式需要填写歌词或风格")
	}
	return nil
}

// ModelOrDefault 返回请求模型，未设置时返回默认模型
func (r GenerationRequest) ModelOrDefault() ModelVersion {
	if r.Model == "" {
		return DefaultModel
	}
	return r.Model
}

// TaskStatus 生成任务状态
type TaskStatus string

const (
	TaskPending            TaskStatus = "PENDING"
	TaskProcessing         TaskStatus = "PROCESSING"
	TaskSuccess            TaskStatus = "SUCCESS"
	TaskFailed             TaskStatus = "FAILED"
	TaskSensitiveWordError TaskStatus = "SENSITIVE_WORD_ERROR"
)

// NormalizeTaskStatus 将上游返回的各种状态变体映射为内部状态
func NormalizeTaskStatus(raw string) TaskStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case s == string(TaskSuccess):
		return TaskSuccess
	case s == string(TaskSensitiveWordError):
		return TaskSensitiveWordError
	case strings.Contains(s, "FAILED"), strings.Contains(s, "EXCEPTION"), strings.HasSuffix(s, "_ERROR"):
		return TaskFailed
	case s == "" || s == string(TaskPending):
		return TaskPending
	default:
		// TEXT_SUCCESS / FIRST_SUCCESS 等中间状态
		return TaskProcessing
	}
}

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskSuccess || s == TaskFailed || s == TaskSensitiveWordError
}

// TaskHandle 服务端任务句柄
type TaskHandle struct {
	TaskID string `json:"task_id"`
}

// GeneratedTrackData 上游返回的单条曲目原始数据
type GeneratedTrackData struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	AudioURL   string  `json:"audioUrl"`
	ImageURL   string  `json:"imageUrl"`
	Tags       string  `json:"tags"`
	Prompt     string  `json:"prompt"`
	ModelName  string  `json:"modelName"`
	CreateTime any     `json:"createTime"`
}

// TaskStatusResult 一次轮询的结果
type TaskStatusResult struct {
	TaskID       string               `json:"task_id"`
	Status       TaskStatus           `json:"status"`
	RawStatus    string               `json:"raw_status"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Tracks       []GeneratedTrackData `json:"tracks,omitempty"`
}
