// Package musicgen 封装外部 AI 音乐生成接口：提交任务与查询任务状态。
// 轮询策略不在这里实现，由工作流按 retry.Policy 驱动。
package musicgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"track-forge/app/config"
	"track-forge/app/model"

	"resty.dev/v3"
)

const (
	submitPath = "/api/v1/generate"
	statusPath = "/api/v1/generate/record-info"
	codeOK     = 200
)

// Client 音乐生成客户端
type Client struct {
	client      *resty.Client
	callbackURL string
}

// New 创建音乐生成客户端
func New(cfg config.GenerationConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{
		client:      client,
		callbackURL: cfg.CallbackURL,
	}
}

// Close 释放底层连接
func (c *Client) Close() error {
	return c.client.Close()
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type submitBody struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model"`
	Instrumental bool   `json:"instrumental"`
	VocalGender  string `json:"vocalGender,omitempty"`
	CustomMode   bool   `json:"customMode"`
	Title        string `json:"title,omitempty"`
	Style        string `json:"style,omitempty"`
	CallBackURL  string `json:"callBackUrl,omitempty"`
}

type recordInfo struct {
	TaskID       string  `json:"taskId"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"errorMessage"`
	Response     *struct {
		SunoData []model.GeneratedTrackData `json:"sunoData"`
		Tracks   []model.GeneratedTrackData `json:"tracks"`
		Data     []model.GeneratedTrackData `json:"data"`
	} `json:"response"`
}

// buildSubmitBody 把内部请求转换为上游请求体
func (c *Client) buildSubmitBody(req model.GenerationRequest) submitBody {
	body := submitBody{
		Prompt:       strings.TrimSpace(req.Prompt),
		Model:        string(req.ModelOrDefault()),
		Instrumental: req.Instrumental || req.VocalType == model.VocalNone,
		CustomMode:   req.CustomMode,
		CallBackURL:  c.callbackURL,
	}

	if !body.Instrumental {
		switch req.VocalType {
		case model.VocalMale:
			body.VocalGender = "m"
		case model.VocalFemale:
			body.VocalGender = "f"
		}
	}

	if req.CustomMode {
		body.Title = strings.TrimSpace(req.Title)
		body.Style = strings.TrimSpace(req.Style)
		// 高级模式下上游把 prompt 当作歌词
		if lyrics := strings.TrimSpace(req.Lyrics); lyrics != "" && !body.Instrumental {
			body.Prompt = lyrics
		}
	}
	return body
}

// Submit 提交生成任务
func (c *Client) Submit(ctx context.Context, req model.GenerationRequest) (*model.TaskHandle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var env envelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(c.buildSubmitBody(req)).
		Post(submitPath)
	if err != nil {
		return nil, model.WrapPipelineError(model.ErrUpstream, "提交生成任务失败", err)
	}

	if err := decode(resp, &env); err != nil {
		return nil, model.WrapPipelineError(model.ErrUpstream, "提交生成任务失败", err)
	}
	if env.Code != codeOK {
		return nil, model.NewPipelineError(model.ErrUpstream, upstreamMessage(env))
	}

	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TaskID == "" {
		return nil, model.NewPipelineError(model.ErrUpstream, "生成接口未返回 taskId")
	}

	return &model.TaskHandle{TaskID: data.TaskID}, nil
}

// PollStatus 查询一次任务状态；网络错误原样返回，由调用方决定是否重试
func (c *Client) PollStatus(ctx context.Context, taskID string) (*model.TaskStatusResult, error) {
	if taskID == "" {
		return nil, fmt.Errorf("taskId 为空")
	}

	var env envelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("taskId", taskID).
		Get(statusPath)
	if err != nil {
		return nil, fmt.Errorf("查询任务状态失败: %w", err)
	}
	if err := decode(resp, &env); err != nil {
		return nil, fmt.Errorf("查询任务状态失败: %w", err)
	}
	if env.Code != codeOK {
		return nil, fmt.Errorf("查询任务状态失败: %s", upstreamMessage(env))
	}

	var info recordInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		return nil, fmt.Errorf("解析任务状态失败: %w", err)
	}

	result := &model.TaskStatusResult{
		TaskID:    taskID,
		Status:    model.NormalizeTaskStatus(info.Status),
		RawStatus: info.Status,
	}
	if info.ErrorMessage != nil {
		result.ErrorMessage = *info.ErrorMessage
	}
	if info.Response != nil {
		switch {
		case len(info.Response.SunoData) > 0:
			result.Tracks = info.Response.SunoData
		case len(info.Response.Tracks) > 0:
			result.Tracks = info.Response.Tracks
		default:
			result.Tracks = info.Response.Data
		}
	}
	return result, nil
}

// decode 检查 HTTP 状态并解析外层结构
func decode(resp *resty.Response, env *envelope) error {
	body := resp.Bytes()
	if err := json.Unmarshal(body, env); err != nil {
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("状态码: %d, 响应: %s", resp.StatusCode(), resp.String())
		}
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && env.Code == 0 {
		env.Code = resp.StatusCode()
	}
	return nil
}

func upstreamMessage(env envelope) string {
	if env.Msg != "" {
		return env.Msg
	}
	return fmt.Sprintf("生成接口返回错误码 %d", env.Code)
}
