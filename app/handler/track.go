package handler

import (
	"net/http"
	"strconv"

	"track-forge/app/middleware"
	"track-forge/app/model"
	"track-forge/app/service"

	"github.com/gin-gonic/gin"
)

// TrackHandler 曲目接口
type TrackHandler struct {
	workflow *service.WorkflowController
	tracks   *service.TrackStore
	records  *service.Datastream
}

// NewTrackHandler 创建曲目处理器
func NewTrackHandler(workflow *service.WorkflowController, tracks *service.TrackStore, records *service.Datastream) *TrackHandler {
	return &TrackHandler{workflow: workflow, tracks: tracks, records: records}
}

// List 当前钱包的曲目，?minted=true|false 过滤
func (h *TrackHandler) List(c *gin.Context) {
	owner, ok := currentOwner(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	var minted *bool
	if v := c.Query("minted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "minted 参数无效")
			return
		}
		minted = &b
	}

	tracks, total, err := h.tracks.ListByOwner(c.Request.Context(), owner.Wallet, minted, pageSize, (page-1)*pageSize)
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, PageResult{Items: tracks, Total: total, Page: page, PageSize: pageSize}, "success")
}

// ShowcaseItem 公开展示的曲目，登录用户能看到哪些是自己的
type ShowcaseItem struct {
	model.GeneratedTrack
	Mine bool `json:"mine"`
}

// Showcase 公开的已铸造曲目列表，携带令牌时标记自己的曲目
func (h *TrackHandler) Showcase(c *gin.Context) {
	page, pageSize := pagination(c)

	tracks, total, err := h.tracks.ListMinted(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		failWithError(c, err)
		return
	}

	wallet := model.NormalizeWallet(c.GetString(middleware.CtxWallet))
	items := make([]ShowcaseItem, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, ShowcaseItem{GeneratedTrack: t, Mine: wallet != "" && t.Owner == wallet})
	}
	success(c, PageResult{Items: items, Total: total, Page: page, PageSize: pageSize}, "success")
}

// Mint 手动重试铸造一首曲目
func (h *TrackHandler) Mint(c *gin.Context) {
	owner, ok := currentOwner(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "曲目ID无效")
		return
	}

	track, err := h.workflow.RetryMint(c.Request.Context(), owner, uint(id))
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, track, "铸造成功")
}

// Records 数据流记录
func (h *TrackHandler) Records(c *gin.Context) {
	owner, ok := currentOwner(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	records, total, err := h.records.ListByOwner(c.Request.Context(), owner.Wallet, pageSize, (page-1)*pageSize)
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, PageResult{Items: records, Total: total, Page: page, PageSize: pageSize}, "success")
}
