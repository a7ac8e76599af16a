package handler

import (
	"track-forge/app/service"

	"github.com/gin-gonic/gin"
)

// LimitHandler 生成额度接口
type LimitHandler struct {
	limiter *service.GenerationLimiter
	artists *service.ArtistRegistry
}

// NewLimitHandler 创建额度处理器
func NewLimitHandler(limiter *service.GenerationLimiter, artists *service.ArtistRegistry) *LimitHandler {
	return &LimitHandler{limiter: limiter, artists: artists}
}

// Get 当前钱包今日额度
func (h *LimitHandler) Get(c *gin.Context) {
	owner, ok := currentOwner(c)
	if !ok {
		return
	}

	status, err := h.limiter.CheckLimit(c.Request.Context(), owner.Wallet, h.artists.IsArtist(owner.Wallet, owner.IsArtist))
	if err != nil {
		failWithError(c, err)
		return
	}
	success(c, status, "success")
}
