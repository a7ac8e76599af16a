// Package retry 提供有界重试与指数退避策略，供各类轮询客户端复用。
package retry

import (
	"context"
	"errors"
	"time"

	"track-forge/app/utils/clock"
)

// ErrExhausted 用尽全部尝试次数仍未到达终态
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy 重试策略
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64 // 小于等于 1 时按 2 处理
}

// DefaultPollPolicy 生成任务轮询的默认策略：40 次，2s 起步，8s 封顶
func DefaultPollPolicy() Policy {
	return Policy{
		MaxAttempts:  40,
		InitialDelay: 2 * time.Second,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
	}
}

// Backoff 返回第 attempt 次（从 0 开始）尝试前的等待时间
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2
	}
	d := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Step 单次尝试。done=true 表示到达终态，此时返回的 err 原样透出；
// done=false 且 err!=nil 视为瞬时错误，被吞掉后继续重试。
type Step func(ctx context.Context, attempt int) (done bool, err error)

// Poll 按策略重复执行 step，每次执行前通过 clk 非阻塞等待
func (p Policy) Poll(ctx context.Context, clk clock.Clock, step Step, onTransient func(attempt int, err error)) error {
	if p.MaxAttempts <= 0 {
		return ErrExhausted
	}

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := clk.Sleep(ctx, p.Backoff(attempt)); err != nil {
			return err
		}

		done, err := step(ctx, attempt)
		if done {
			return err
		}
		if err != nil && onTransient != nil {
			onTransient(attempt, err)
		}
	}
	return ErrExhausted
}
