package clock

import (
	"context"
	"testing"
	"time"
)

func TestFake_SleepAdvancesTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if err := f.Sleep(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Advance(time.Second)

	if got := f.Now().Sub(start); got != 3*time.Second {
		t.Errorf("expected 3s elapsed, got %v", got)
	}
	sleeps := f.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != 2*time.Second {
		t.Errorf("expected one 2s sleep, got %v", sleeps)
	}
}

func TestFake_SleepHonorsCancelledContext(t *testing.T) {
	f := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.Sleep(ctx, time.Second); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(f.Sleeps()) != 0 {
		t.Error("cancelled sleep should not be recorded")
	}
}

func TestReal_SleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Real().Sleep(ctx, time.Minute)
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("sleep did not return promptly on cancellation")
	}
}
