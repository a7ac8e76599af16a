package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"track-forge/app/model"
	"track-forge/app/utils/clock"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// LimitStore 按钱包保存生成计数
type LimitStore interface {
	// Get 读取钱包记录，不存在时返回 (nil, nil)
	Get(ctx context.Context, wallet string) (*model.GenerationLimit, error)
	// Update 对钱包记录做原子的读-改-写，记录不存在时 fn 收到一个空记录
	Update(ctx context.Context, wallet string, fn func(rec *model.GenerationLimit) error) error
}

// GormLimitStore 基于数据库的计数存储
type GormLimitStore struct {
	db *gorm.DB
}

// NewGormLimitStore 创建数据库计数存储
func NewGormLimitStore(db *gorm.DB) *GormLimitStore {
	return &GormLimitStore{db: db}
}

func (s *GormLimitStore) Get(ctx context.Context, wallet string) (*model.GenerationLimit, error) {
	var recs []model.GenerationLimit
	if err := s.db.WithContext(ctx).Where("wallet = ?", wallet).Limit(1).Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (s *GormLimitStore) Update(ctx context.Context, wallet string, fn func(rec *model.GenerationLimit) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.GenerationLimit
		err := tx.Where("wallet = ?", wallet).First(&rec).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = model.GenerationLimit{Wallet: wallet}
		}

		if err := fn(&rec); err != nil {
			return err
		}
		return tx.Save(&rec).Error
	})
}

// DeleteStale 删除 before 之前就没有再更新过的记录
func (s *GormLimitStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&model.GenerationLimit{})
	return result.RowsAffected, result.Error
}

// MemoryLimitStore 进程内计数存储，条目在本地零点过期
type MemoryLimitStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	clock clock.Clock
}

// NewMemoryLimitStore 创建内存计数存储
func NewMemoryLimitStore(clk clock.Clock) *MemoryLimitStore {
	return &MemoryLimitStore{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
		clock: clk,
	}
}

func (s *MemoryLimitStore) Get(_ context.Context, wallet string) (*model.GenerationLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(wallet), nil
}

func (s *MemoryLimitStore) Update(_ context.Context, wallet string, fn func(rec *model.GenerationLimit) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.load(wallet)
	if rec == nil {
		rec = &model.GenerationLimit{Wallet: wallet}
	}
	if err := fn(rec); err != nil {
		return err
	}

	now := s.clock.Now()
	rec.UpdatedAt = now
	s.cache.Set(wallet, *rec, clock.NextMidnight(now).Sub(now))
	return nil
}

// load 返回副本，调用方修改不会影响缓存
func (s *MemoryLimitStore) load(wallet string) *model.GenerationLimit {
	v, ok := s.cache.Get(wallet)
	if !ok {
		return nil
	}
	rec, ok := v.(model.GenerationLimit)
	if !ok {
		// 类型不符视为没有历史记录
		return nil
	}
	return &rec
}
