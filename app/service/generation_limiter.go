package service

import (
	"context"
	"fmt"
	"time"

	"track-forge/app/logger"
	"track-forge/app/model"
	"track-forge/app/utils/clock"
)

// DefaultFreeDailyLimit 免费钱包每日生成次数
const DefaultFreeDailyLimit = 3

// GenerationLimiter 每日生成次数限制。艺术家钱包不受限制也不计数。
type GenerationLimiter struct {
	store     LimitStore
	clock     clock.Clock
	freeDaily int
	locks     *keyedMutex
	logger    *logger.Logger
}

// NewGenerationLimiter 创建限制器
func NewGenerationLimiter(store LimitStore, clk clock.Clock, freeDaily int, log *logger.Logger) *GenerationLimiter {
	if freeDaily < 0 {
		freeDaily = DefaultFreeDailyLimit
	}
	return &GenerationLimiter{
		store:     store,
		clock:     clk,
		freeDaily: freeDaily,
		locks:     newKeyedMutex(),
		logger:    log,
	}
}

// CheckLimit 查询钱包当日额度
func (l *GenerationLimiter) CheckLimit(ctx context.Context, wallet string, isArtist bool) (model.LimitStatus, error) {
	wallet = model.NormalizeWallet(wallet)
	now := l.clock.Now()
	status := model.LimitStatus{
		ResetTime: clock.NextMidnight(now),
		IsArtist:  isArtist,
	}

	used := l.usedToday(ctx, wallet, now.Format(model.DayLayout))
	status.TotalToday = used

	if isArtist {
		status.CanGenerate = true
		status.Remaining = model.Unlimited
		return status, nil
	}

	status.Remaining = l.freeDaily - used
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	status.CanGenerate = status.Remaining > 0
	return status, nil
}

// usedToday 读取失败或数据损坏时按未使用处理
func (l *GenerationLimiter) usedToday(ctx context.Context, wallet, day string) int {
	rec, err := l.store.Get(ctx, wallet)
	if err != nil {
		l.logger.Warnf("读取生成计数失败，按未使用处理: wallet=%s, err=%v", wallet, err)
		return 0
	}
	return rec.UsageOn(day)
}

// RecordGeneration 记录一次生成。艺术家钱包不计数；免费钱包已达上限时返回 ErrQuotaExceeded
func (l *GenerationLimiter) RecordGeneration(ctx context.Context, wallet, taskID string, isArtist bool) error {
	if isArtist {
		return nil
	}
	wallet = model.NormalizeWallet(wallet)

	unlock := l.locks.Lock(wallet)
	defer unlock()

	return l.increment(ctx, wallet, taskID)
}

func (l *GenerationLimiter) increment(ctx context.Context, wallet, taskID string) error {
	now := l.clock.Now()
	day := now.Format(model.DayLayout)

	return l.store.Update(ctx, wallet, func(rec *model.GenerationLimit) error {
		used := rec.UsageOn(day)
		if used >= l.freeDaily {
			return l.quotaError(now)
		}
		rec.Date = day
		rec.Count = used + 1
		if taskID != "" {
			rec.LastTask = taskID
		}
		return nil
	})
}

func (l *GenerationLimiter) quotaError(now time.Time) error {
	err := model.NewPipelineError(model.ErrQuotaExceeded, fmt.Sprintf("今日免费生成次数已用完（%d 次）", l.freeDaily))
	reset := clock.NextMidnight(now)
	err.ResetTime = &reset
	return err
}

// Reservation 预占的一次生成额度
type Reservation struct {
	limiter  *GenerationLimiter
	wallet   string
	day      string
	isArtist bool
	done     bool
}

// Reserve 原子地检查并占用一次额度，供工作流在提交前调用。
// 提交失败时调用 Release 归还，成功时调用 Commit 记下任务ID。
func (l *GenerationLimiter) Reserve(ctx context.Context, wallet string, isArtist bool) (*Reservation, error) {
	wallet = model.NormalizeWallet(wallet)
	r := &Reservation{limiter: l, wallet: wallet, isArtist: isArtist, day: l.clock.Now().Format(model.DayLayout)}
	if isArtist {
		return r, nil
	}

	unlock := l.locks.Lock(wallet)
	defer unlock()

	if err := l.increment(ctx, wallet, ""); err != nil {
		return nil, err
	}
	return r, nil
}

// Commit 确认占用并记录任务ID
func (r *Reservation) Commit(ctx context.Context, taskID string) {
	if r.done || r.isArtist {
		r.done = true
		return
	}
	r.done = true

	l := r.limiter
	unlock := l.locks.Lock(r.wallet)
	defer unlock()

	err := l.store.Update(ctx, r.wallet, func(rec *model.GenerationLimit) error {
		if rec.Date == r.day {
			rec.LastTask = taskID
		}
		return nil
	})
	if err != nil {
		l.logger.Warnf("记录生成任务ID失败: wallet=%s, taskId=%s, err=%v", r.wallet, taskID, err)
	}
}

// Release 归还未使用的额度
func (r *Reservation) Release(ctx context.Context) {
	if r.done || r.isArtist {
		r.done = true
		return
	}
	r.done = true

	l := r.limiter
	unlock := l.locks.Lock(r.wallet)
	defer unlock()

	err := l.store.Update(ctx, r.wallet, func(rec *model.GenerationLimit) error {
		if rec.Date == r.day && rec.Count > 0 {
			rec.Count--
		}
		return nil
	})
	if err != nil {
		l.logger.Warnf("归还生成额度失败: wallet=%s, err=%v", r.wallet, err)
	}
}
