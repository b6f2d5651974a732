package poll

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"verifyctl/internal/clock"
)

type state struct {
	done bool
	n    int
}

func isDone(s *state) bool { return s.done }

func newFake() *clock.Fake {
	return clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestUntil_DoneOnFirstProbe(t *testing.T) {
	fake := newFake()
	calls := 0

	got, err := Until(context.Background(), func(ctx context.Context) (*state, error) {
		calls++
		return &state{done: true, n: calls}, nil
	}, isDone, Options{Timeout: time.Minute, Clock: fake})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 probe, got %d", calls)
	}
	if got.n != 1 {
		t.Errorf("expected result from first probe, got %+v", got)
	}
	if len(fake.Sleeps()) != 0 {
		t.Errorf("expected no sleeps, got %v", fake.Sleeps())
	}
}

func TestUntil_ExponentialDelayCapped(t *testing.T) {
	fake := newFake()
	calls := 0

	_, err := Until(context.Background(), func(ctx context.Context) (*state, error) {
		calls++
		return &state{done: calls == 7}, nil
	}, isDone, Options{Timeout: time.Hour, Clock: fake})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	if !reflect.DeepEqual(fake.Sleeps(), want) {
		t.Errorf("expected sleeps %v, got %v", want, fake.Sleeps())
	}
}

func TestUntil_NilResultIsNotReady(t *testing.T) {
	fake := newFake()
	calls := 0

	got, err := Until(context.Background(), func(ctx context.Context) (*state, error) {
		calls++
		if calls < 3 {
			return nil, nil
		}
		return &state{done: true}, nil
	}, isDone, Options{Timeout: time.Minute, Clock: fake})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || calls != 3 {
		t.Errorf("expected result after 3 probes, got %v after %d", got, calls)
	}
}

func TestUntil_TimeoutStopsProbing(t *testing.T) {
	fake := newFake()
	start := fake.Now()
	timeout := 15 * time.Second
	var probeTimes []time.Duration

	_, err := Until(context.Background(), func(ctx context.Context) (*state, error) {
		probeTimes = append(probeTimes, fake.Now().Sub(start))
		return &state{done: false}, nil
	}, isDone, Options{Label: "run r-1", Timeout: timeout, Clock: fake})

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if timeoutErr.Label != "run r-1" || timeoutErr.Timeout != timeout {
		t.Errorf("unexpected timeout error: %+v", timeoutErr)
	}
	if err.Error() != "run r-1: timed out after 15s" {
		t.Errorf("unexpected error text: %s", err.Error())
	}

	// 0, 1, 3, 7 and then a final probe clamped to the deadline.
	want := []time.Duration{0, time.Second, 3 * time.Second, 7 * time.Second, 15 * time.Second}
	if !reflect.DeepEqual(probeTimes, want) {
		t.Errorf("expected probes at %v, got %v", want, probeTimes)
	}
	for _, p := range probeTimes {
		if p > timeout {
			t.Errorf("probe ran after the deadline at %v", p)
		}
	}
	// The last sleep is clamped to the remaining time.
	sleeps := fake.Sleeps()
	if sleeps[len(sleeps)-1] != 8*time.Second {
		t.Errorf("expected final sleep clamped to 8s, got %v", sleeps)
	}
}

func TestUntil_ProbeErrorAbortsImmediately(t *testing.T) {
	fake := newFake()
	boom := errors.New("boom")
	calls := 0

	_, err := Until(context.Background(), func(ctx context.Context) (*state, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return nil, nil
	}, isDone, Options{Timeout: time.Minute, Clock: fake})

	if !errors.Is(err, boom) {
		t.Errorf("expected probe error to propagate, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected polling to stop after the failing probe, got %d calls", calls)
	}
}

func TestUntil_ProbeFailingOnPollDeadlineIsTimeout(t *testing.T) {
	// Real clock: the probe blocks until the poll's own context expires.
	_, err := Until(context.Background(), func(ctx context.Context) (*state, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, isDone, Options{Label: "slow", Timeout: 20 * time.Millisecond})

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
}

func TestUntil_ParentCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Until(ctx, func(ctx context.Context) (*state, error) {
		return nil, ctx.Err()
	}, isDone, Options{Timeout: time.Minute, Clock: newFake()})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestUntil_RealClockTimeout(t *testing.T) {
	start := time.Now()
	calls := 0

	_, err := Until(context.Background(), func(ctx context.Context) (*state, error) {
		calls++
		return nil, nil
	}, isDone, Options{Timeout: 50 * time.Millisecond, InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond})

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("poll overran its deadline")
	}
	if calls < 2 {
		t.Errorf("expected several probes, got %d", calls)
	}
}
