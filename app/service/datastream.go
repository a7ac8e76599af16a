package service

import (
	"context"

	"track-forge/app/logger"
	"track-forge/app/model"

	"gorm.io/gorm"
)

// Datastream 只追加的生成/铸造结果记录
type Datastream struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewDatastream 创建数据流
func NewDatastream(db *gorm.DB, log *logger.Logger) *Datastream {
	return &Datastream{db: db, logger: log}
}

// SaveRecord 追加一条记录
func (d *Datastream) SaveRecord(ctx context.Context, rec *model.TrackRecord) error {
	rec.ID = 0
	if err := d.db.WithContext(ctx).Create(rec).Error; err != nil {
		return model.WrapPipelineError(model.ErrRecording, "写入数据流失败", err)
	}
	d.logger.Debugf("数据流记录已写入: owner=%s, taskId=%s, title=%s, status=%s", rec.Owner, rec.TaskID, rec.Title, rec.Status)
	return nil
}

// ListByOwner 按钱包分页查询记录，最新的在前
func (d *Datastream) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]model.TrackRecord, int64, error) {
	var records []model.TrackRecord
	var total int64

	query := d.db.WithContext(ctx).Model(&model.TrackRecord{}).Where("owner = ?", model.NormalizeWallet(owner))
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
