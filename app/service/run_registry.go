package service

import (
	"context"
	"errors"

	"track-forge/app/logger"
	"track-forge/app/model"
	"track-forge/app/utils/clock"

	"gorm.io/gorm"
)

// ErrRunNotFound 运行记录不存在
var ErrRunNotFound = errors.New("workflow run not found")

// RunRegistry 工作流运行记录
type RunRegistry struct {
	db     *gorm.DB
	clock  clock.Clock
	logger *logger.Logger
}

// NewRunRegistry 创建运行记录表
func NewRunRegistry(db *gorm.DB, clk clock.Clock, log *logger.Logger) *RunRegistry {
	return &RunRegistry{db: db, clock: clk, logger: log}
}

// Create 新建运行记录
func (r *RunRegistry) Create(ctx context.Context, run *model.WorkflowRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = r.clock.Now()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// UpdateProgress 更新状态与进度
func (r *RunRegistry) UpdateProgress(ctx context.Context, runID string, state model.WorkflowState, progress int) error {
	return r.db.WithContext(ctx).Model(&model.WorkflowRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]any{"state": state, "progress": progress}).Error
}

// SetTaskID 记录生成任务ID
func (r *RunRegistry) SetTaskID(ctx context.Context, runID, taskID string) error {
	return r.db.WithContext(ctx).Model(&model.WorkflowRun{}).
		Where("run_id = ?", runID).
		Update("task_id", taskID).Error
}

// Finish 写入最终结果；summary 与 err 二选一
func (r *RunRegistry) Finish(ctx context.Context, runID string, summary *model.WorkflowSummary, runErr error) error {
	var run model.WorkflowRun
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return err
	}

	now := r.clock.Now()
	run.CompletedAt = &now
	run.Progress = 100

	if runErr != nil {
		run.State = model.StateError
		run.Outcome = model.OutcomeError
		run.ErrorKind = model.ErrorKindName(runErr)
		run.ErrorMessage = runErr.Error()
	} else if summary != nil {
		run.ApplySummary(summary)
		if summary.Outcome == model.OutcomeDone {
			run.State = model.StateDone
		} else {
			run.State = model.StatePartial
		}
	}

	return r.db.WithContext(ctx).Save(&run).Error
}

// Get 按运行ID读取
func (r *RunRegistry) Get(ctx context.Context, runID string) (*model.WorkflowRun, error) {
	var run model.WorkflowRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByOwner 按钱包分页查询
func (r *RunRegistry) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]model.WorkflowRun, int64, error) {
	var runs []model.WorkflowRun
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WorkflowRun{}).Where("owner = ?", model.NormalizeWallet(owner))
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// MarkInterrupted 启动时把未完成的运行标记为失败，进程重启后无法继续这些流水线
func (r *RunRegistry) MarkInterrupted(ctx context.Context) (int64, error) {
	now := r.clock.Now()
	result := r.db.WithContext(ctx).Model(&model.WorkflowRun{}).
		Where("state NOT IN ?", []model.WorkflowState{model.StateDone, model.StatePartial, model.StateError}).
		Updates(map[string]any{
			"state":         model.StateError,
			"outcome":       model.OutcomeError,
			"error_kind":    "Interrupted",
			"error_message": "服务重启，流水线被中断",
			"completed_at":  now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		r.logger.Warnf("标记了 %d 个被中断的工作流", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// CleanupOld 删除 retention 天之前已结束的运行记录
func (r *RunRegistry) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := r.clock.Now().AddDate(0, 0, -retentionDays)

	result := r.db.WithContext(ctx).
		Where("completed_at IS NOT NULL AND completed_at < ?", cutoff).
		Delete(&model.WorkflowRun{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		r.logger.Infof("清理了 %d 个已结束的工作流记录（超过%d天）", result.RowsAffected, retentionDays)
	}
	return result.RowsAffected, nil
}
