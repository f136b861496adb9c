// Package loadgen fires a bounded-concurrency burst of synthetic
// requests at an endpoint and aggregates latency and outcome samples
// into a StressTestResult. One run is one stage-validation gate; probes
// have pass/fail semantics, never retry semantics.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"stagewatch/internal/credentials"
	"stagewatch/internal/rollout"
)

const (
	DefaultRequests    = 50
	DefaultConcurrency = 10
	DefaultTimeout     = 10 * time.Second

	// DefaultSuccessThreshold and DefaultLatencyThresholdMs gate the
	// derived pass verdict.
	DefaultSuccessThreshold   = 95.0
	DefaultLatencyThresholdMs = 500.0
)

// Config describes one load burst.
type Config struct {
	Endpoint    string
	Method      string // default GET
	Stage       string // optional context recorded on the result
	Requests    int
	Concurrency int
	Timeout     time.Duration

	// ExpectedStatuses lists acceptable response codes; empty means any 2xx.
	ExpectedStatuses []int

	SuccessThreshold   float64 // percent, default 95
	LatencyThresholdMs float64 // default 500

	// RequiresAuth injects a bearer token from the credential provider.
	RequiresAuth bool
	TokenScope   string
}

func (c Config) withDefaults() Config {
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	if c.Requests <= 0 {
		c.Requests = DefaultRequests
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.LatencyThresholdMs <= 0 {
		c.LatencyThresholdMs = DefaultLatencyThresholdMs
	}
	if c.TokenScope == "" {
		c.TokenScope = "load-probe"
	}
	return c
}

func (c Config) accepts(status int) bool {
	if len(c.ExpectedStatuses) == 0 {
		return status >= 200 && status <= 299
	}
	return slices.Contains(c.ExpectedStatuses, status)
}

// Sample is one probe's outcome. Timed-out probes are failures with the
// elapsed wait as their latency sample, never excluded.
type Sample struct {
	LatencyMs float64
	OK        bool
}

// Run executes the burst: a worker pool capped at Config.Concurrency
// dispatches Config.Requests probes, waits for all of them, then
// aggregates. The returned error covers setup problems only; probe
// failures are data, reflected in the result.
func Run(ctx context.Context, cfg Config, creds credentials.Provider) (rollout.StressTestResult, error) {
	cfg = cfg.withDefaults()
	if cfg.Endpoint == "" {
		return rollout.StressTestResult{}, errors.New("load generator: endpoint is required")
	}

	token := ""
	if cfg.RequiresAuth && creds != nil {
		var err error
		token, err = creds.Token(ctx, cfg.TokenScope)
		if err != nil {
			return rollout.StressTestResult{}, fmt.Errorf("load generator: %w", err)
		}
	}

	client := &http.Client{Timeout: cfg.Timeout}
	samples := make([]Sample, cfg.Requests)

	var g errgroup.Group
	g.SetLimit(cfg.Concurrency)

	start := time.Now()
	for i := range samples {
		i := i
		g.Go(func() error {
			samples[i] = probe(ctx, client, cfg, token)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; they record outcomes
	elapsed := time.Since(start)

	return Aggregate(cfg, samples, elapsed, time.Now()), nil
}

func probe(ctx context.Context, client *http.Client, cfg Config, token string) Sample {
	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.Endpoint, nil)
	if err != nil {
		return Sample{OK: false}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	latency := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		return Sample{LatencyMs: latency, OK: false}
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()

	return Sample{LatencyMs: latency, OK: cfg.accepts(resp.StatusCode)}
}

// Aggregate folds samples into an immutable StressTestResult. Pass
// requires both the success-rate floor and the p95 latency ceiling.
func Aggregate(cfg Config, samples []Sample, elapsed time.Duration, now time.Time) rollout.StressTestResult {
	cfg = cfg.withDefaults()

	total := len(samples)
	successes := 0
	latencies := make([]float64, 0, total)
	sum := 0.0
	for _, s := range samples {
		if s.OK {
			successes++
		}
		latencies = append(latencies, s.LatencyMs)
		sum += s.LatencyMs
	}
	slices.Sort(latencies)

	successRate, errorRate, avg := 0.0, 0.0, 0.0
	if total > 0 {
		successRate = 100 * float64(successes) / float64(total)
		errorRate = 100 * float64(total-successes) / float64(total)
		avg = sum / float64(total)
	}
	p95 := Percentile(latencies, 0.95)

	return rollout.StressTestResult{
		Endpoint:           cfg.Endpoint,
		Stage:              cfg.Stage,
		TotalRequests:      total,
		SuccessCount:       successes,
		FailureCount:       total - successes,
		SuccessRatePercent: successRate,
		ErrorRatePercent:   errorRate,
		AverageLatencyMs:   avg,
		P50Ms:              Percentile(latencies, 0.50),
		P95Ms:              p95,
		P99Ms:              Percentile(latencies, 0.99),
		DurationMs:         elapsed.Milliseconds(),
		Timestamp:          now,
		Passed:             successRate >= cfg.SuccessThreshold && p95 <= cfg.LatencyThresholdMs,
	}
}
