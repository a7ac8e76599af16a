package handler

import (
	"errors"
	"net/http"
	"time"

	"track-forge/app/auth"
	"track-forge/app/config"
	"track-forge/app/middleware"
	"track-forge/app/model"
	"track-forge/app/service"
	"track-forge/app/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config     *config.Config
	db         *gorm.DB
	artists    *service.ArtistRegistry
	jwtService *auth.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, db *gorm.DB, artists *service.ArtistRegistry) *AuthHandler {
	return &AuthHandler{
		config:     cfg,
		db:         db,
		artists:    artists,
		jwtService: auth.NewJWTService(cfg),
	}
}

// LoginRequest 登录请求结构
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应结构
type LoginResponse struct {
	Token    string      `json:"token"`
	User     *model.User `json:"user"`
	ExpireAt int64       `json:"expire_at"`
}

// RegisterRequest 注册请求结构
type RegisterRequest struct {
	Username      string `json:"username" binding:"required,min=3,max=20"`
	Password      string `json:"password" binding:"required,min=6"`
	WalletAddress string `json:"wallet_address" binding:"required,eth_addr"`
	DisplayName   string `json:"display_name" binding:"max=100"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	var user model.User
	if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		fail(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if !utils.VerifyPassword(req.Password, user.Password) {
		fail(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if !user.IsActive {
		fail(c, http.StatusForbidden, "用户账号已被禁用")
		return
	}

	token, err := h.issue(&user)
	if err != nil {
		fail(c, http.StatusInternalServerError, "生成令牌失败")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	h.db.Save(&user)

	expireAt := now.Add(time.Duration(h.config.JWT.ExpireTime) * time.Hour).Unix()

	success(c, LoginResponse{
		Token:    token,
		User:     &user,
		ExpireAt: expireAt,
	}, "登录成功")
}

// issue 艺术家身份取用户标记与白名单的并集
func (h *AuthHandler) issue(user *model.User) (string, error) {
	return h.jwtService.GenerateToken(auth.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Wallet:      user.WalletAddress,
		IsArtist:    h.artists.IsArtist(user.WalletAddress, user.IsArtist),
	})
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	if err := utils.CheckPassword(req.Password); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	var existing model.User
	if err := h.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		fail(c, http.StatusConflict, "用户名已存在")
		return
	}

	wallet := model.NormalizeWallet(req.WalletAddress)
	err := h.db.Where("wallet_address = ?", wallet).First(&existing).Error
	if err == nil {
		fail(c, http.StatusConflict, "钱包地址已被绑定")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusInternalServerError, "查询用户失败")
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, "密码哈希失败")
		return
	}

	user := model.User{
		Username:      req.Username,
		Password:      hashedPassword,
		WalletAddress: wallet,
		DisplayName:   req.DisplayName,
		IsActive:      true,
	}

	if err := h.db.Create(&user).Error; err != nil {
		fail(c, http.StatusInternalServerError, "创建用户失败")
		return
	}

	success(c, user, "注册成功")
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) <= len("Bearer ") {
		fail(c, http.StatusUnauthorized, "Authorization header is required")
		return
	}

	newToken, err := h.jwtService.RefreshToken(authHeader[len("Bearer "):])
	if err != nil {
		fail(c, http.StatusUnauthorized, "刷新令牌失败: "+err.Error())
		return
	}

	expireAt := time.Now().Add(time.Duration(h.config.JWT.ExpireTime) * time.Hour).Unix()

	success(c, gin.H{
		"token":     newToken,
		"expire_at": expireAt,
	}, "刷新成功")
}

// Me 获取当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get(middleware.CtxUserID)
	if !exists {
		fail(c, http.StatusUnauthorized, "未认证")
		return
	}

	var user model.User
	if err := h.db.First(&user, userID).Error; err != nil {
		fail(c, http.StatusNotFound, "用户不存在")
		return
	}

	user.IsArtist = h.artists.IsArtist(user.WalletAddress, user.IsArtist)
	success(c, user, "success")
}
