// Package retry wraps fallible operations with bounded exponential
// backoff. Only failures classified as transient are retried; anything
// else surfaces immediately. On exhaustion the last failure is wrapped
// with the attempt count and total elapsed time.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 60 * time.Second

	// jitterFraction is ±25% of the computed delay, matching the
	// platform wrappers this executor fronts.
	jitterFraction = 0.25
)

// Transienter is implemented by errors that know whether they are worth
// retrying (rate limits, 5xx-equivalents).
type Transienter interface {
	Transient() bool
}

// Policy configures one execution. The zero value uses the defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool

	// Transient overrides the retryability check. Defaults to IsTransient.
	Transient func(error) bool

	// Sleep is a test seam; defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Transient == nil {
		p.Transient = IsTransient
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

// Delay returns the backoff before the given retry: BaseDelay × 2^(attempt-1),
// capped at MaxDelay, with optional ±25% jitter. Attempts are 1-based.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter {
		spread := float64(d) * jitterFraction
		d += time.Duration((rand.Float64()*2 - 1) * spread)
		if d < 0 {
			d = 0
		}
	}
	return d
}

// ExhaustedError wraps the final failure after all attempts were spent.
type ExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts in %s: %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// IsTransient is the default retryability check: errors that declare
// themselves transient, network timeouts, and exceeded deadlines.
func IsTransient(err error) bool {
	var t Transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Do runs op until it succeeds, fails fatally, or attempts run out.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	p = p.withDefaults()
	start := time.Now()

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !p.Transient(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return &ExhaustedError{Attempts: attempt, Elapsed: time.Since(start), Err: err}
		}
		if serr := p.Sleep(ctx, p.Delay(attempt)); serr != nil {
			return fmt.Errorf("retry wait after attempt %d: %w", attempt, serr)
		}
	}
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = op(ctx)
		return innerErr
	})
	return out, err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
