package service

import (
	"path/filepath"
	"testing"
	"time"

	"track-forge/app/database"
	"track-forge/app/logger"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestLogger(t *testing.T) *logger.Logger {
	return logger.NewFromZap(zaptest.NewLogger(t))
}

// testStart 上午十点，离零点足够远
var testStart = time.Date(2025, 3, 10, 10, 0, 0, 0, time.Local)
