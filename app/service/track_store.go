package service

import (
	"context"
	"errors"

	"track-forge/app/model"

	"gorm.io/gorm"
)

// ErrTrackNotFound 曲目不存在
var ErrTrackNotFound = errors.New("track not found")

// TrackStore 生成曲目的持久化
type TrackStore struct {
	db *gorm.DB
}

// NewTrackStore 创建曲目存储
func NewTrackStore(db *gorm.DB) *TrackStore {
	return &TrackStore{db: db}
}

// Save 新建或更新曲目
func (s *TrackStore) Save(ctx context.Context, track *model.GeneratedTrack) error {
	return s.db.WithContext(ctx).Save(track).Error
}

// Get 按主键读取
func (s *TrackStore) Get(ctx context.Context, id uint) (*model.GeneratedTrack, error) {
	var track model.GeneratedTrack
	err := s.db.WithContext(ctx).First(&track, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	return &track, nil
}

// ListByOwner 按钱包分页查询，mintedFilter 为 nil 时不过滤
func (s *TrackStore) ListByOwner(ctx context.Context, owner string, mintedFilter *bool, limit, offset int) ([]model.GeneratedTrack, int64, error) {
	var tracks []model.GeneratedTrack
	var total int64

	query := s.db.WithContext(ctx).Model(&model.GeneratedTrack{}).Where("owner = ?", model.NormalizeWallet(owner))
	if mintedFilter != nil {
		query = query.Where("minted = ?", *mintedFilter)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&tracks).Error; err != nil {
		return nil, 0, err
	}
	return tracks, total, nil
}

// ListByRun 查询某次运行产生的曲目
func (s *TrackStore) ListByRun(ctx context.Context, runID string) ([]model.GeneratedTrack, error) {
	var tracks []model.GeneratedTrack
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&tracks).Error
	return tracks, err
}

// ListMinted 所有已铸造的曲目，公开展示用
func (s *TrackStore) ListMinted(ctx context.Context, limit, offset int) ([]model.GeneratedTrack, int64, error) {
	var tracks []model.GeneratedTrack
	var total int64

	query := s.db.WithContext(ctx).Model(&model.GeneratedTrack{}).Where("minted = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("minted_at DESC, id DESC").Limit(limit).Offset(offset).Find(&tracks).Error; err != nil {
		return nil, 0, err
	}
	return tracks, total, nil
}
