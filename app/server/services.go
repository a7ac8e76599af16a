package server

import (
	"context"
	"fmt"

	"track-forge/app/client/contentstore"
	"track-forge/app/client/minter"
	"track-forge/app/client/musicgen"
	"track-forge/app/config"
	"track-forge/app/logger"
	"track-forge/app/service"
	"track-forge/app/utils/clock"
	"track-forge/app/utils/downloader"
	"track-forge/app/utils/retry"

	"gorm.io/gorm"
)

// Services 进程内共享的服务实例，启动时创建一次
type Services struct {
	Limiter  *service.GenerationLimiter
	Artists  *service.ArtistRegistry
	Runs     *service.RunRegistry
	Tracks   *service.TrackStore
	Records  *service.Datastream
	Hub      *service.ProgressHub
	Minter   *service.MintOrchestrator
	Workflow *service.WorkflowController
	Cleanup  *service.CleanupService

	generator *musicgen.Client
	store     *contentstore.Client
	mint      *minter.Client
	fetcher   *downloader.Fetcher
	logger    *logger.Logger
}

// NewServices 按配置组装所有服务
func NewServices(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Services, error) {
	clk := clock.New()

	var limitStore service.LimitStore
	var staleRemover service.StaleLimitRemover
	switch cfg.Limits.Store {
	case "memory":
		limitStore = service.NewMemoryLimitStore(clk)
	case "", "database":
		gormStore := service.NewGormLimitStore(db)
		limitStore, staleRemover = gormStore, gormStore
	default:
		return nil, fmt.Errorf("不支持的计数存储: %s", cfg.Limits.Store)
	}

	artists, err := service.NewArtistRegistry(cfg.Artists, log.Named("artists"))
	if err != nil {
		return nil, err
	}

	s := &Services{
		Limiter:   service.NewGenerationLimiter(limitStore, clk, cfg.Limits.FreeDaily, log.Named("limiter")),
		Artists:   artists,
		Runs:      service.NewRunRegistry(db, clk, log.Named("runs")),
		Tracks:    service.NewTrackStore(db),
		Records:   service.NewDatastream(db, log.Named("datastream")),
		Hub:       service.NewProgressHub(),
		generator: musicgen.New(cfg.Generation),
		store:     contentstore.New(cfg.ContentStore),
		mint:      minter.New(cfg.Mint),
		fetcher: downloader.New(&downloader.FetchConfig{
			UserAgent: "track-forge/1.0",
			Timeout:   cfg.ContentStore.Timeout,
			MaxBytes:  cfg.ContentStore.MaxMediaBytes,
		}),
		logger: log,
	}
	s.Minter = service.NewMintOrchestrator(s.mint, clk, cfg.Mint.Spacing, log.Named("mint"))

	s.Workflow = service.NewWorkflowController(service.WorkflowDeps{
		Generator: s.generator,
		Uploader:  s.store,
		Fetcher:   s.fetcher,
		Minter:    s.Minter,
		Records:   s.Records,
		Limiter:   s.Limiter,
		Artists:   s.Artists,
		Tracks:    s.Tracks,
		Runs:      s.Runs,
		Hub:       s.Hub,
		Clock:     clk,
		Logger:    log.Named("workflow"),
	}, service.WorkflowOptions{
		Poll: retry.Policy{
			MaxAttempts:  cfg.Generation.MaxAttempts,
			InitialDelay: cfg.Generation.InitialDelay,
			MaxDelay:     cfg.Generation.MaxDelay,
			Multiplier:   2,
		},
		ArtworkSize: cfg.ContentStore.ArtworkSize,
		RoyaltyBps:  cfg.Mint.RoyaltyBps,
	})

	s.Cleanup = service.NewCleanupService(cfg.Cleanup, s.Runs, staleRemover, clk, log.Named("cleanup"))
	return s, nil
}

// Start 启动后台服务，并把上次未完成的运行标记为中断
func (s *Services) Start(ctx context.Context) error {
	if _, err := s.Runs.MarkInterrupted(ctx); err != nil {
		s.logger.Warnf("标记中断的工作流失败: %v", err)
	}
	if err := s.Artists.Start(); err != nil {
		return err
	}
	return s.Cleanup.Start()
}

// Close 等待后台运行结束并释放资源
func (s *Services) Close(ctx context.Context) error {
	err := s.Workflow.Shutdown(ctx)
	if err != nil {
		s.logger.Warnf("等待工作流结束超时: %v", err)
	}

	s.Cleanup.Stop()
	if serr := s.Artists.Stop(); serr != nil {
		s.logger.Warnf("停止艺术家名单监控失败: %v", serr)
	}
	s.generator.Close()
	s.store.Close()
	s.mint.Close()
	s.fetcher.Close()
	return err
}
