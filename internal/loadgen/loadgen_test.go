package loadgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stagewatch/internal/credentials"
)

func TestPercentile(t *testing.T) {
	t.Run("hundred samples", func(t *testing.T) {
		// 10, 20, ..., 1000: p50/p95/p99 land on sorted[49]/[94]/[98].
		samples := make([]float64, 100)
		for i := range samples {
			samples[i] = float64((i + 1) * 10)
		}

		if got := Percentile(samples, 0.50); got != 500 {
			t.Fatalf("p50 = %v, want 500", got)
		}
		if got := Percentile(samples, 0.95); got != 950 {
			t.Fatalf("p95 = %v, want 950", got)
		}
		if got := Percentile(samples, 0.99); got != 990 {
			t.Fatalf("p99 = %v, want 990", got)
		}
	})

	t.Run("small samples clamp", func(t *testing.T) {
		if got := Percentile([]float64{42}, 0.99); got != 42 {
			t.Fatalf("single sample p99 = %v", got)
		}
		if got := Percentile([]float64{1, 2, 3}, 0.50); got != 2 {
			t.Fatalf("p50 of three = %v", got)
		}
		if got := Percentile([]float64{1, 2, 3}, 0.99); got != 3 {
			t.Fatalf("p99 of three = %v", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := Percentile(nil, 0.95); got != 0 {
			t.Fatalf("empty p95 = %v", got)
		}
	})
}

func syntheticSamples(total, failures int, latencyMs float64) []Sample {
	out := make([]Sample, 0, total)
	for i := 0; i < total; i++ {
		out = append(out, Sample{LatencyMs: latencyMs, OK: i >= failures})
	}
	return out
}

func TestAggregateThresholds(t *testing.T) {
	cfg := Config{Endpoint: "http://probe", SuccessThreshold: 95, LatencyThresholdMs: 500}

	t.Run("success rate below floor fails", func(t *testing.T) {
		r := Aggregate(cfg, syntheticSamples(100, 6, 100), time.Second, time.Now())
		if r.SuccessRatePercent != 94 {
			t.Fatalf("success rate = %v", r.SuccessRatePercent)
		}
		if r.Passed {
			t.Fatal("94% success must not pass a 95% threshold")
		}
	})

	t.Run("latency above ceiling fails", func(t *testing.T) {
		r := Aggregate(cfg, syntheticSamples(100, 4, 600), time.Second, time.Now())
		if r.SuccessRatePercent != 96 || r.P95Ms != 600 {
			t.Fatalf("aggregate = %+v", r)
		}
		if r.Passed {
			t.Fatal("p95=600ms must not pass a 500ms ceiling")
		}
	})

	t.Run("both within bounds passes", func(t *testing.T) {
		r := Aggregate(cfg, syntheticSamples(100, 4, 400), time.Second, time.Now())
		if !r.Passed {
			t.Fatalf("96%% success at p95=400ms should pass: %+v", r)
		}
	})
}

func TestAggregateCounts(t *testing.T) {
	samples := []Sample{
		{LatencyMs: 10, OK: true},
		{LatencyMs: 20, OK: true},
		{LatencyMs: 30, OK: false},
		{LatencyMs: 40, OK: true},
	}
	r := Aggregate(Config{Endpoint: "http://probe"}, samples, 250*time.Millisecond, time.Now())

	if r.TotalRequests != 4 || r.SuccessCount != 3 || r.FailureCount != 1 {
		t.Fatalf("counts = %d/%d/%d", r.TotalRequests, r.SuccessCount, r.FailureCount)
	}
	if r.ErrorRatePercent != 25 {
		t.Fatalf("error rate = %v", r.ErrorRatePercent)
	}
	if r.AverageLatencyMs != 25 {
		t.Fatalf("average latency = %v", r.AverageLatencyMs)
	}
	if r.DurationMs != 250 {
		t.Fatalf("duration = %d", r.DurationMs)
	}
}

func TestRunAgainstServer(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every 5th request fails server-side.
		if hits.Add(1)%5 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result, err := Run(context.Background(), Config{
		Endpoint:    srv.URL,
		Requests:    50,
		Concurrency: 8,
		Timeout:     5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.TotalRequests != 50 {
		t.Fatalf("total = %d", result.TotalRequests)
	}
	if result.SuccessCount != 40 || result.FailureCount != 10 {
		t.Fatalf("success/failure = %d/%d", result.SuccessCount, result.FailureCount)
	}
	if result.SuccessRatePercent != 80 {
		t.Fatalf("success rate = %v", result.SuccessRatePercent)
	}
	if result.Passed {
		t.Fatal("80% success must not pass the default 95% threshold")
	}
	if result.P95Ms <= 0 {
		t.Fatalf("p95 = %v, want positive sample", result.P95Ms)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := Run(context.Background(), Config{
		Endpoint:    srv.URL,
		Requests:    40,
		Concurrency: 4,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := peak.Load(); got > 4 {
		t.Fatalf("peak in-flight = %d, want <= 4", got)
	}
}

func TestRunTimeoutCountsAsFailure(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	defer once.Do(func() { close(release) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result, err := Run(context.Background(), Config{
		Endpoint:    srv.URL,
		Requests:    3,
		Concurrency: 3,
		Timeout:     50 * time.Millisecond,
	}, nil)
	once.Do(func() { close(release) })
	if err != nil {
		t.Fatal(err)
	}

	if result.FailureCount != 3 {
		t.Fatalf("failures = %d, want 3 timeouts", result.FailureCount)
	}
	// Timed-out probes contribute latency samples, they are not excluded.
	if result.P95Ms < 40 {
		t.Fatalf("p95 = %v, want at least the timeout wait", result.P95Ms)
	}
	if result.Passed {
		t.Fatal("all-timeout burst must not pass")
	}
}

func TestRunInjectsBearerToken(t *testing.T) {
	var sawAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-probe" {
			sawAuth.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := Run(context.Background(), Config{
		Endpoint:     srv.URL,
		Requests:     2,
		RequiresAuth: true,
	}, credentials.Static("tok-probe"))
	if err != nil {
		t.Fatal(err)
	}
	if !sawAuth.Load() {
		t.Fatal("bearer token not injected")
	}
}

func TestRunExpectedStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	result, err := Run(context.Background(), Config{
		Endpoint:         srv.URL,
		Requests:         4,
		ExpectedStatuses: []int{http.StatusOK},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.SuccessCount != 0 {
		t.Fatalf("202 accepted despite explicit 200-only expectation: %+v", result)
	}
}
