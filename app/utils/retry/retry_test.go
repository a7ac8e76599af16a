package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"track-forge/app/utils/clock"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := DefaultPollPolicy()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i); got != w {
			t.Fatalf("Backoff(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestPollReturnsTerminalResult(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	p := DefaultPollPolicy()
	calls := 0
	err := p.Poll(context.Background(), clk, func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return attempt == 2, nil
	}, nil)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if got := clk.Now().Sub(time.Unix(0, 0)); got != 14*time.Second {
		t.Fatalf("elapsed = %v, want 14s", got)
	}
}

func TestPollSwallowsTransientErrorsUntilExhausted(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	p := Policy{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 2 * time.Second}
	transient := 0
	err := p.Poll(context.Background(), clk, func(ctx context.Context, attempt int) (bool, error) {
		return false, errors.New("network blip")
	}, func(attempt int, err error) { transient++ })
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if transient != 5 {
		t.Fatalf("transient = %d, want 5", transient)
	}
	if len(clk.Sleeps()) != 5 {
		t.Fatalf("sleeps = %d, want 5", len(clk.Sleeps()))
	}
}

func TestPollPropagatesTerminalError(t *testing.T) {
	boom := errors.New("failed upstream")
	err := DefaultPollPolicy().Poll(context.Background(), clock.NewFake(time.Now()), func(ctx context.Context, attempt int) (bool, error) {
		return true, boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestPollStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := DefaultPollPolicy().Poll(ctx, clock.NewFake(time.Now()), func(ctx context.Context, attempt int) (bool, error) {
		t.Fatal("step must not run after cancel")
		return false, nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
