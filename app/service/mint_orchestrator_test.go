package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"track-forge/app/model"
	"track-forge/app/utils/clock"
)

// fakeMintClient 记录每次提交的时间
type fakeMintClient struct {
	mu      sync.Mutex
	clock   clock.Clock
	calls   []model.MintMetadata
	times   []time.Time
	fail    map[string]string // title -> 错误
	partial map[string]bool   // title -> 成功但缺 txHash
	err     error
}

func (f *fakeMintClient) Mint(_ context.Context, meta model.MintMetadata) (model.MintResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, meta)
	f.times = append(f.times, f.clock.Now())
	if f.err != nil {
		return model.MintResult{}, f.err
	}
	if msg, ok := f.fail[meta.Title]; ok {
		return model.MintResult{Success: false, Error: msg}, nil
	}
	if f.partial[meta.Title] {
		return model.MintResult{Success: true, TokenID: "1"}, nil
	}
	n := len(f.calls)
	return model.MintResult{Success: true, TokenID: fmt.Sprint(n), TxHash: fmt.Sprintf("0xtx%d", n)}, nil
}

func (f *fakeMintClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestMintSpacingAtLeastOneSecond(t *testing.T) {
	clk := clock.NewFake(testStart)
	client := &fakeMintClient{clock: clk}
	o := NewMintOrchestrator(client, clk, time.Second, newTestLogger(t))

	for i := 0; i < 5; i++ {
		res := o.Mint(context.Background(), freeWallet, model.MintMetadata{Title: fmt.Sprintf("t%d", i)})
		if !res.Success {
			t.Fatalf("mint %d failed: %+v", i, res)
		}
	}

	for i := 1; i < len(client.times); i++ {
		if gap := client.times[i].Sub(client.times[i-1]); gap < time.Second {
			t.Fatalf("gap between mint %d and %d = %v", i-1, i, gap)
		}
	}
}

func TestMintSpacingIsPerWallet(t *testing.T) {
	clk := clock.NewFake(testStart)
	client := &fakeMintClient{clock: clk}
	o := NewMintOrchestrator(client, clk, time.Second, newTestLogger(t))

	o.Mint(context.Background(), "0xaaa", model.MintMetadata{Title: "a"})
	o.Mint(context.Background(), "0xbbb", model.MintMetadata{Title: "b"})

	if len(clk.Sleeps()) != 0 {
		t.Fatalf("different wallets should not wait: %v", clk.Sleeps())
	}
}

func TestMintSpacingEnforcedAcrossGoroutines(t *testing.T) {
	clk := clock.NewFake(testStart)
	client := &fakeMintClient{clock: clk}
	o := NewMintOrchestrator(client, clk, time.Second, newTestLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o.Mint(context.Background(), freeWallet, model.MintMetadata{Title: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	if client.count() != 4 {
		t.Fatalf("calls = %d", client.count())
	}
	for i := 1; i < len(client.times); i++ {
		if gap := client.times[i].Sub(client.times[i-1]); gap < time.Second {
			t.Fatalf("gap %d = %v", i, gap)
		}
	}
}

func TestMintFailuresReturnedInResult(t *testing.T) {
	clk := clock.NewFake(testStart)
	client := &fakeMintClient{
		clock:   clk,
		fail:    map[string]string{"bad": "execution reverted"},
		partial: map[string]bool{"half": true},
	}
	o := NewMintOrchestrator(client, clk, time.Second, newTestLogger(t))
	ctx := context.Background()

	if res := o.Mint(ctx, freeWallet, model.MintMetadata{Title: "bad"}); res.Success || res.Error != "execution reverted" {
		t.Fatalf("bad: %+v", res)
	}
	if res := o.Mint(ctx, freeWallet, model.MintMetadata{Title: "half"}); res.Success || res.TokenID != "" {
		t.Fatalf("partial result should be downgraded: %+v", res)
	}

	client.err = errors.New("connection refused")
	if res := o.Mint(ctx, freeWallet, model.MintMetadata{Title: "x"}); res.Success || res.Error == "" {
		t.Fatalf("transport error: %+v", res)
	}
}
