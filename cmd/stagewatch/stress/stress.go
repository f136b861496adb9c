package stresscmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stagewatch/cmd/stagewatch/cmdutil"
	"stagewatch/cmd/stagewatch/ui"
	"stagewatch/internal/loadgen"
	"stagewatch/internal/supervise"
)

// Cmd returns the "stagewatch stress" command: a one-off load burst
// against an endpoint, outside any rollout. Useful for tuning the
// validation thresholds before wiring them into supervision.
func Cmd(configFlag *string) *cobra.Command {
	var (
		endpoint         string
		requests         int
		concurrency      int
		timeout          time.Duration
		successThreshold float64
		latencyThreshold float64
		expectStatuses   []int
		auth             bool
	)

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a one-off load burst against an endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cmdutil.Build(*configFlag)
			if err != nil {
				return err
			}

			cfg := loadgen.Config{
				Endpoint:           endpoint,
				Requests:           requests,
				Concurrency:        concurrency,
				Timeout:            timeout,
				ExpectedStatuses:   expectStatuses,
				SuccessThreshold:   successThreshold,
				LatencyThresholdMs: latencyThreshold,
				RequiresAuth:       auth,
			}
			if endpoint == "" {
				if base := app.StressConfig(); base != nil {
					cfg = *base
				}
			}

			result, err := loadgen.Run(cmd.Context(), cfg, app.Creds)
			if err != nil {
				return err
			}

			fmt.Println(ui.StressSummary(result))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("Endpoint", result.Endpoint),
				ui.KV("Duration", fmt.Sprintf("%dms", result.DurationMs)),
				ui.KV("Failures", fmt.Sprintf("%d (%.1f%%)", result.FailureCount, result.ErrorRatePercent)),
				ui.KV("Avg Latency", fmt.Sprintf("%.1fms", result.AverageLatencyMs)),
			))

			if !result.Passed {
				return &supervise.ValidationError{Result: result, Stage: "ad-hoc"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint to probe (defaults to the configured stress endpoint)")
	cmd.Flags().IntVar(&requests, "requests", 0, "Total probe count")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Worker pool ceiling")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-probe timeout")
	cmd.Flags().Float64Var(&successThreshold, "success-threshold", 0, "Minimum success rate percent")
	cmd.Flags().Float64Var(&latencyThreshold, "latency-threshold", 0, "Maximum p95 latency in milliseconds")
	cmd.Flags().IntSliceVar(&expectStatuses, "expect-status", nil, "Acceptable response codes (default any 2xx)")
	cmd.Flags().BoolVar(&auth, "auth", false, "Send a bearer token from the credential chain")
	return cmd
}
