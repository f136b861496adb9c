// Package clockcheck verifies local clock health against an NTP pool.
// State timestamps, lock staleness, and notification ordering all lean
// on the local clock, so supervision warns when it drifts.
package clockcheck

import (
	"time"

	"github.com/beevik/ntp"
)

const (
	defaultPool      = "pool.ntp.org"
	defaultThreshold = 500 * time.Millisecond
)

// Status is the outcome of one drift check.
type Status struct {
	Offset    time.Duration
	Healthy   bool
	Error     string
	CheckedAt time.Time
}

// Checker runs one-shot drift checks. The zero value is not usable; use New.
type Checker struct {
	pool      string
	threshold time.Duration
	now       func() time.Time

	// QueryFunc overrides the NTP query, for tests.
	QueryFunc func() (time.Duration, error)
}

func New() *Checker {
	return &Checker{
		pool:      defaultPool,
		threshold: defaultThreshold,
		now:       time.Now,
	}
}

// Check queries the pool once and classifies the offset. A failed query
// is reported unhealthy with the error recorded; the caller decides
// whether that blocks anything.
func (c *Checker) Check() Status {
	offset, err := c.query()
	now := c.now()
	if err != nil {
		return Status{Error: err.Error(), CheckedAt: now}
	}
	return Status{
		Offset:    offset,
		Healthy:   offset.Abs() < c.threshold,
		CheckedAt: now,
	}
}

func (c *Checker) query() (time.Duration, error) {
	if c.QueryFunc != nil {
		return c.QueryFunc()
	}
	resp, err := ntp.Query(c.pool)
	if err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}
