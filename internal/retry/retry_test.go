package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type transientErr struct{ msg string }

func (e *transientErr) Error() string   { return e.msg }
func (e *transientErr) Transient() bool { return true }

type fatalErr struct{ msg string }

func (e *fatalErr) Error() string   { return e.msg }
func (e *fatalErr) Transient() bool { return false }

func noSleep(context.Context, time.Duration) error { return nil }

func TestDoRetriesTransientToCap(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, Sleep: noSleep}, func(context.Context) error {
		calls++
		return &transientErr{"connection reset"}
	})

	if calls != 3 {
		t.Fatalf("attempts = %d, want 3", calls)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("error = %T (%v), want *ExhaustedError", err, err)
	}
	if ex.Attempts != 3 {
		t.Fatalf("ExhaustedError.Attempts = %d, want 3", ex.Attempts)
	}
	var te *transientErr
	if !errors.As(err, &te) {
		t.Fatal("exhausted error does not wrap the final failure")
	}
}

func TestDoFailsFastOnFatal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, Sleep: noSleep}, func(context.Context) error {
		calls++
		return &fatalErr{"invalid parameter"}
	})

	if calls != 1 {
		t.Fatalf("attempts = %d, want 1", calls)
	}
	var fe *fatalErr
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want the fatal error unchanged", err)
	}
}

func TestDoSucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, Sleep: noSleep}, func(context.Context) error {
		calls++
		if calls < 2 {
			return &transientErr{"throttled"}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("attempts = %d, want 2", calls)
	}
}

func TestDelaySequence(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDelayJitterStaysBounded(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Jitter: true}
	for i := 0; i < 100; i++ {
		d := p.Delay(1)
		if d < 750*time.Millisecond || d > 1250*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±25%% of 1s", d)
		}
	}
}

func TestDoObservedDelays(t *testing.T) {
	var slept []time.Duration
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	_ = Do(context.Background(), p, func(context.Context) error {
		return &transientErr{"still failing"}
	})

	// No sleep after the final attempt.
	if len(slept) != 2 {
		t.Fatalf("sleeps = %v, want 2 entries", slept)
	}
	if slept[0] != 10*time.Millisecond || slept[1] != 20*time.Millisecond {
		t.Fatalf("delays = %v, want [10ms 20ms]", slept)
	}
}

func TestDoStopsOnCancelledWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		return &transientErr{"busy"}
	})

	if calls != 1 {
		t.Fatalf("attempts = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestDoValue(t *testing.T) {
	calls := 0
	got, err := DoValue(context.Background(), Policy{MaxAttempts: 3, Sleep: noSleep}, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &transientErr{"rate limited"}
		}
		return "rollout-42", nil
	})

	if err != nil {
		t.Fatalf("DoValue() error = %v", err)
	}
	if got != "rollout-42" {
		t.Fatalf("value = %q", got)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(errors.New("plain")) {
		t.Fatal("plain error reported transient")
	}
	if !IsTransient(&transientErr{"x"}) {
		t.Fatal("self-declared transient not honored")
	}
	if IsTransient(&fatalErr{"x"}) {
		t.Fatal("self-declared fatal reported transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded not transient")
	}
}
