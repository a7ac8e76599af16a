package database

import (
	"track-forge/app/model"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	// 自动迁移表结构
	return db.AutoMigrate(
		&model.User{},
		&model.GenerationLimit{},
		&model.GeneratedTrack{},
		&model.TrackRecord{},
		&model.WorkflowRun{},
	)
}
