package model

import (
	"errors"
	"fmt"
	"time"
)

// 流水线错误类别，使用 errors.Is 判断
var (
	ErrValidation        = errors.New("validation error")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrUpstream          = errors.New("upstream error")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrSensitiveContent  = errors.New("sensitive content")
	ErrGenerationTimeout = errors.New("generation timeout")
	ErrUpload            = errors.New("upload error")
	ErrMint              = errors.New("mint error")
	ErrRecording         = errors.New("recording error")
)

// PipelineError 带类别的流水线错误
type PipelineError struct {
	Kind      error
	Message   string
	ResetTime *time.Time // 仅 ErrQuotaExceeded 使用
	Cause     error
}

// NewPipelineError 创建流水线错误
func NewPipelineError(kind error, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message}
}

// WrapPipelineError 创建带底层原因的流水线错误
func WrapPipelineError(kind error, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause}
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is 使 errors.Is(err, ErrXxx) 按类别匹配
func (e *PipelineError) Is(target error) bool {
	return target == e.Kind
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// ErrorKindName 返回错误类别的名称，用于持久化和接口响应
func ErrorKindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrQuotaExceeded):
		return "QuotaExceeded"
	case errors.Is(err, ErrSensitiveContent):
		return "SensitiveContentError"
	case errors.Is(err, ErrGenerationFailed):
		return "GenerationFailed"
	case errors.Is(err, ErrGenerationTimeout):
		return "GenerationTimeout"
	case errors.Is(err, ErrUpstream):
		return "UpstreamError"
	case errors.Is(err, ErrUpload):
		return "UploadError"
	case errors.Is(err, ErrMint):
		return "MintError"
	case errors.Is(err, ErrRecording):
		return "RecordingError"
	default:
		return "InternalError"
	}
}
