package server

import (
	"context"
	"net/http"

	"track-forge/app/config"
	"track-forge/app/database"
	"track-forge/app/handler"
	"track-forge/app/logger"
	"track-forge/app/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server 表示 HTTP 服务器
type Server struct {
	Config   *config.Config
	Logger   *logger.Logger
	Services *Services
	db       *gorm.DB
	gin      *gin.Engine
	http     *http.Server
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Server, error) {
	services, err := NewServices(cfg, db, log)
	if err != nil {
		return nil, err
	}

	router := gin.Default()

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:   cfg,
		Logger:   log,
		Services: services,
		db:       db,
	}

	s.setupRoutes()

	return s, nil
}

// Handler 返回路由，测试中直接配合 httptest 使用
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	if err := s.Services.Start(context.Background()); err != nil {
		return err
	}

	return s.http.ListenAndServe()
}

// Shutdown 先停止接收请求，再等待后台工作流结束
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.http.Shutdown(ctx)

	if err := s.Services.Close(ctx); err != nil {
		s.Logger.Errorf("关闭服务失败: %v", err)
	}

	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
	return httpErr
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	svc := s.Services
	authHandler := handler.NewAuthHandler(s.Config, s.db, svc.Artists)
	generationHandler := handler.NewGenerationHandler(svc.Workflow, svc.Runs, svc.Tracks, svc.Hub)
	trackHandler := handler.NewTrackHandler(svc.Workflow, svc.Tracks, svc.Records)
	limitHandler := handler.NewLimitHandler(svc.Limiter, svc.Artists)

	api := s.gin.Group("/api")

	// 认证相关路由（不需要JWT验证）
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", authHandler.Register)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	// 公开展示，登录与否均可访问
	api.GET("/showcase", middleware.OptionalJWTAuth(s.Config), trackHandler.Showcase)

	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(s.Config))
	{
		protected.GET("/me", authHandler.Me)
		protected.GET("/limits", limitHandler.Get)

		generations := protected.Group("/generations")
		{
			generations.POST("", generationHandler.Create)
			generations.GET("", generationHandler.List)
			generations.GET("/:id", generationHandler.Get)
			generations.GET("/:id/events", generationHandler.Events)
		}

		tracks := protected.Group("/tracks")
		{
			tracks.GET("", trackHandler.List)
			tracks.POST("/:id/mint", trackHandler.Mint)
		}

		protected.GET("/records", trackHandler.Records)
	}
}
