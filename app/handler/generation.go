package handler

import (
	"io"
	"net/http"
	"time"

	"track-forge/app/model"
	"track-forge/app/service"

	"github.com/gin-gonic/gin"
)

// sseKeepAlive SSE 保活间隔
const sseKeepAlive = 15 * time.Second

// GenerationHandler 生成任务接口
type GenerationHandler struct {
	workflow *service.WorkflowController
	runs     *service.RunRegistry
	tracks   *service.TrackStore
	hub      *service.ProgressHub
}

// NewGenerationHandler 创建生成任务处理器
func NewGenerationHandler(workflow *service.WorkflowController, runs *service.RunRegistry, tracks *service.TrackStore, hub *service.ProgressHub) *GenerationHandler {
	return &GenerationHandler{workflow: workflow, runs: runs, tracks: tracks, hub: hub}
}

// RunDetail 运行详情
type RunDetail struct {
	*model.WorkflowRun
	Tracks []model.GeneratedTrack `json:"tracks"`
}

// Create 发起生成，校验和额度检查同步完成，其余步骤后台执行
func (h *GenerationHandler) Create(c *gin.Context) {
	owner, ok := currentOwner(c)
	if !ok {
		return
	}

	var req model.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	handle, err := h.workflow.Start(owner, req)
	if err != nil {
		failWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ApiResponse{
		Code:    0,
		Message: "生成任务已开始",
		Data:    gin.H{"run_id": handle.RunID},
	})
}

// List 当前钱包的运行记录
func (h *GenerationHandler) List(c *gin.Context) {
	owner, ok := currentOwner(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	runs, total, err := h.runs.ListByOwner(c.Request.Context(), owner.Wallet, pageSize, (page-1)*pageSize)
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, PageResult{Items: runs, Total: total, Page: page, PageSize: pageSize}, "success")
}

// Get 运行详情
func (h *GenerationHandler) Get(c *gin.Context) {
	run, ok := h.ownedRun(c)
	if !ok {
		return
	}

	tracks, err := h.tracks.ListByRun(c.Request.Context(), run.RunID)
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, RunDetail{WorkflowRun: run, Tracks: tracks}, "success")
}

// Events 以 SSE 推送运行进度，到达终态后关闭
func (h *GenerationHandler) Events(c *gin.Context) {
	run, ok := h.ownedRun(c)
	if !ok {
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	if run.State.IsTerminal() {
		c.SSEvent("progress", runEvent(run))
		return
	}

	events, cancel := h.hub.Subscribe(run.RunID)
	defer cancel()

	// 订阅之前运行可能已经结束，终态事件不会再推送
	if run, ok := h.finishedRun(c, run.RunID); ok {
		c.SSEvent("progress", runEvent(run))
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("progress", ev)
			return !ev.State.IsTerminal()
		case <-ticker.C:
			if run, ok := h.finishedRun(c, run.RunID); ok {
				c.SSEvent("progress", runEvent(run))
				return false
			}
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// finishedRun 重新读取运行记录，仅在已结束时返回
func (h *GenerationHandler) finishedRun(c *gin.Context, runID string) (*model.WorkflowRun, bool) {
	run, err := h.runs.Get(c.Request.Context(), runID)
	if err != nil || !run.State.IsTerminal() {
		return nil, false
	}
	return run, true
}

func runEvent(run *model.WorkflowRun) model.ProgressEvent {
	return model.ProgressEvent{RunID: run.RunID, State: run.State, Progress: run.Progress, Message: run.ErrorMessage}
}

// ownedRun 只允许查看自己的运行
func (h *GenerationHandler) ownedRun(c *gin.Context) (*model.WorkflowRun, bool) {
	owner, ok := currentOwner(c)
	if !ok {
		return nil, false
	}

	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failWithError(c, err)
		return nil, false
	}
	if run.Owner != model.NormalizeWallet(owner.Wallet) {
		failWithError(c, service.ErrRunNotFound)
		return nil, false
	}
	return run, true
}
