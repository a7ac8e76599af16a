package service

import (
	"context"
	"sync"
	"time"

	"track-forge/app/logger"
	"track-forge/app/model"
	"track-forge/app/utils/clock"

	"golang.org/x/time/rate"
)

// DefaultMintSpacing 同一钱包相邻两次铸造提交的最小间隔
const DefaultMintSpacing = time.Second

// MintClient 铸造接口
type MintClient interface {
	Mint(ctx context.Context, meta model.MintMetadata) (model.MintResult, error)
}

// MintOrchestrator 按钱包串行提交铸造交易，相邻提交至少间隔 spacing，避免 nonce 冲突。
// 每次铸造相互独立，单条失败只体现在返回结果里。
type MintOrchestrator struct {
	client  MintClient
	clock   clock.Clock
	spacing time.Duration
	logger  *logger.Logger

	locks    *keyedMutex
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	last     map[string]time.Time
}

// NewMintOrchestrator 创建铸造编排器
func NewMintOrchestrator(client MintClient, clk clock.Clock, spacing time.Duration, log *logger.Logger) *MintOrchestrator {
	if spacing < DefaultMintSpacing {
		spacing = DefaultMintSpacing
	}
	return &MintOrchestrator{
		client:   client,
		clock:    clk,
		spacing:  spacing,
		logger:   log,
		locks:    newKeyedMutex(),
		limiters: make(map[string]*rate.Limiter),
		last:     make(map[string]time.Time),
	}
}

func (o *MintOrchestrator) limiter(wallet string) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()

	l, ok := o.limiters[wallet]
	if !ok {
		l = rate.NewLimiter(rate.Every(o.spacing), 1)
		o.limiters[wallet] = l
	}
	return l
}

// waitTurn 等到允许提交为止，返回实际提交时刻
func (o *MintOrchestrator) waitTurn(ctx context.Context, wallet string) (time.Time, error) {
	now := o.clock.Now()
	r := o.limiter(wallet).ReserveN(now, 1)
	delay := r.DelayFrom(now)

	// 浮点换算可能差几纳秒，以上次提交时刻为准再兜一次
	o.mu.Lock()
	if last, ok := o.last[wallet]; ok {
		if gap := o.spacing - now.Sub(last); gap > delay {
			delay = gap
		}
	}
	o.mu.Unlock()

	if delay > 0 {
		o.logger.Debugf("铸造间隔等待 %v: wallet=%s", delay, wallet)
		if err := o.clock.Sleep(ctx, delay); err != nil {
			r.CancelAt(o.clock.Now())
			return time.Time{}, err
		}
	}

	at := o.clock.Now()
	o.mu.Lock()
	o.last[wallet] = at
	o.mu.Unlock()
	return at, nil
}

// Mint 为一条曲目提交铸造交易
func (o *MintOrchestrator) Mint(ctx context.Context, wallet string, meta model.MintMetadata) model.MintResult {
	wallet = model.NormalizeWallet(wallet)

	unlock := o.locks.Lock(wallet)
	defer unlock()

	if _, err := o.waitTurn(ctx, wallet); err != nil {
		return model.MintResult{Error: "等待铸造时被取消: " + err.Error()}
	}

	res, err := o.client.Mint(ctx, meta)
	if err != nil {
		o.logger.Warnf("铸造请求失败: wallet=%s, title=%s, err=%v", wallet, meta.Title, err)
		return model.MintResult{Error: err.Error()}
	}

	if res.Success && !res.Complete() {
		// 没有 tokenId/txHash 的成功不算成功
		o.logger.Warnf("铸造结果不完整: wallet=%s, title=%s, tokenId=%q, txHash=%q", wallet, meta.Title, res.TokenID, res.TxHash)
		return model.MintResult{Error: "铸造结果缺少 tokenId 或 txHash"}
	}
	if !res.Success && res.Error == "" {
		res.Error = "铸造失败"
	}

	if res.Success {
		o.logger.Infof("铸造成功: wallet=%s, title=%s, tokenId=%s, txHash=%s", wallet, meta.Title, res.TokenID, res.TxHash)
	} else {
		o.logger.Warnf("铸造失败: wallet=%s, title=%s, err=%s", wallet, meta.Title, res.Error)
	}
	return res
}
