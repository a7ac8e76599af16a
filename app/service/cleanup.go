package service

import (
	"context"
	"fmt"
	"time"

	"track-forge/app/config"
	"track-forge/app/logger"
	"track-forge/app/utils/clock"

	"github.com/robfig/cron/v3"
)

// staleLimitTTL 计数记录超过这个时间没更新就不再有意义
const staleLimitTTL = 48 * time.Hour

// StaleLimitRemover 能清理过期计数的存储
type StaleLimitRemover interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// CleanupService 定时清理过期运行记录和计数
type CleanupService struct {
	cron      *cron.Cron
	schedule  string
	retention int
	runs      *RunRegistry
	limits    StaleLimitRemover
	clock     clock.Clock
	logger    *logger.Logger
}

// NewCleanupService 创建清理服务，limits 可以为 nil
func NewCleanupService(cfg config.CleanupConfig, runs *RunRegistry, limits StaleLimitRemover, clk clock.Clock, log *logger.Logger) *CleanupService {
	return &CleanupService{
		cron:      cron.New(),
		schedule:  cfg.Schedule,
		retention: cfg.RunRetention,
		runs:      runs,
		limits:    limits,
		clock:     clk,
		logger:    log,
	}
}

// Start 注册定时任务并启动
func (s *CleanupService) Start() error {
	if s.schedule == "" {
		s.logger.Info("未配置清理计划，跳过定时清理")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return fmt.Errorf("注册清理任务失败: %w", err)
	}
	s.cron.Start()
	s.logger.Infof("清理服务已启动: schedule=%s, retention=%d天", s.schedule, s.retention)
	return nil
}

// Stop 停止调度并等待正在执行的任务
func (s *CleanupService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("清理服务已停止")
}

// RunOnce 执行一次清理
func (s *CleanupService) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.runs.CleanupOld(ctx, s.retention); err != nil {
		s.logger.Errorf("清理运行记录失败: %v", err)
	}

	if s.limits == nil {
		return
	}
	n, err := s.limits.DeleteStale(ctx, s.clock.Now().Add(-staleLimitTTL))
	if err != nil {
		s.logger.Errorf("清理生成计数失败: %v", err)
		return
	}
	if n > 0 {
		s.logger.Infof("清理了 %d 条过期的生成计数", n)
	}
}
