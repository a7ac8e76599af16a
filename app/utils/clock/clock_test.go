package clock

import (
	"context"
	"testing"
	"time"
)

func TestFakeSleepAdvancesTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	f := NewFake(start)
	if err := f.Sleep(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	if got := f.Now(); !got.Equal(start.Add(3 * time.Second)) {
		t.Fatalf("now = %v", got)
	}
	if len(f.Sleeps()) != 1 {
		t.Fatalf("sleeps = %v", f.Sleeps())
	}
}

func TestNextMidnight(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	if got := NextMidnight(now); !got.Equal(want) {
		t.Fatalf("NextMidnight = %v, want %v", got, want)
	}
}

func TestRealSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New().Sleep(ctx, time.Hour); err == nil {
		t.Fatal("expected context error")
	}
}
