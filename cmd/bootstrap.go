package cmd

import (
	"track-forge/app/config"
	"track-forge/app/database"
	"track-forge/app/logger"
)

// bootstrap 加载配置、创建日志器并初始化数据库
func bootstrap() (*config.Config, *logger.Logger) {
	cfg := config.Load()

	log := logger.New(cfg.Log)

	if err := database.Init(cfg, log); err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}
	return cfg, log
}
