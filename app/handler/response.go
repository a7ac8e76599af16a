package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"track-forge/app/middleware"
	"track-forge/app/model"
	"track-forge/app/service"

	"github.com/gin-gonic/gin"
)

// ApiResponse 统一响应结构
type ApiResponse struct {
	Code    int    `json:"code"`    // 状态码，0表示成功
	Message string `json:"message"` // 响应消息
	Data    any    `json:"data"`    // 响应数据
}

// PageResult 分页结果
type PageResult struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, ApiResponse{Code: status, Message: message})
}

// statusFor 错误类别到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrGenerationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrUpstream),
		errors.Is(err, model.ErrGenerationFailed),
		errors.Is(err, model.ErrSensitiveContent),
		errors.Is(err, model.ErrUpload),
		errors.Is(err, model.ErrMint):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrTrackNotFound), errors.Is(err, service.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTrackAlreadyMinted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// failWithError 按错误类别返回，额度错误附带重置时间
func failWithError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := ApiResponse{Code: status, Message: err.Error()}

	data := gin.H{"kind": model.ErrorKindName(err)}
	var pe *model.PipelineError
	if errors.As(err, &pe) && pe.ResetTime != nil {
		data["reset_time"] = pe.ResetTime.Format(time.RFC3339)
		c.Header("Retry-After", strconv.Itoa(int(time.Until(*pe.ResetTime).Seconds())+1))
	}
	resp.Data = data

	c.JSON(status, resp)
}

// currentOwner 从令牌中取出钱包身份
func currentOwner(c *gin.Context) (model.Owner, bool) {
	wallet := c.GetString(middleware.CtxWallet)
	if wallet == "" {
		fail(c, http.StatusBadRequest, "账号未绑定钱包地址")
		return model.Owner{}, false
	}
	return model.Owner{
		Wallet:   wallet,
		Name:     c.GetString(middleware.CtxName),
		IsArtist: c.GetBool(middleware.CtxIsArtist),
	}, true
}

// pagination 解析分页参数
func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
