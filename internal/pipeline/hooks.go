package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultHookPollInterval = 5 * time.Second
	defaultHookTimeout      = 15 * time.Minute
)

// Hooks runs optional pipelines around stage transitions. A failed
// pre-stage hook halts supervision; a failed post-stage hook only warns.
type Hooks struct {
	Client      Client
	PreStageID  string
	PostStageID string

	PollInterval time.Duration
	Timeout      time.Duration

	// Sleep is a test seam; defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RunPre runs the pre-stage pipeline, blocking until the build finishes.
// Returns an error on build failure; supervision must halt on it.
func (h *Hooks) RunPre(ctx context.Context, rolloutID, stage string) error {
	if h == nil || h.Client == nil || h.PreStageID == "" {
		return nil
	}
	if err := h.runAndWait(ctx, h.PreStageID, rolloutID, stage, "pre"); err != nil {
		return fmt.Errorf("pre-stage pipeline for %s: %w", stage, err)
	}
	return nil
}

// RunPost runs the post-stage pipeline. Failures are logged, never
// propagated: a post-stage hook cannot stop the rollout.
func (h *Hooks) RunPost(ctx context.Context, rolloutID, stage string) {
	if h == nil || h.Client == nil || h.PostStageID == "" {
		return
	}
	if err := h.runAndWait(ctx, h.PostStageID, rolloutID, stage, "post"); err != nil {
		slog.Warn("post-stage pipeline failed", "rollout_id", rolloutID, "stage", stage, "err", err)
	}
}

func (h *Hooks) runAndWait(ctx context.Context, pipelineID, rolloutID, stage, phase string) error {
	buildID, err := h.Client.Run(ctx, pipelineID, map[string]string{
		"rollout_id": rolloutID,
		"stage":      stage,
		"phase":      phase,
	})
	if err != nil {
		return err
	}
	slog.Debug("pipeline hook started", "pipeline_id", pipelineID, "build_id", buildID, "stage", stage, "phase", phase)

	interval := h.PollInterval
	if interval <= 0 {
		interval = defaultHookPollInterval
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHookTimeout
	}
	sleep := h.Sleep
	if sleep == nil {
		sleep = waitTimer
	}

	deadline := time.Now().Add(timeout)
	for {
		status, err := h.Client.Status(ctx, buildID)
		if err != nil {
			return err
		}
		if status.Finished() {
			if !status.Succeeded() {
				detail := status.Error
				if detail == "" {
					if logs, lerr := h.Client.Logs(ctx, buildID); lerr == nil {
						detail = tail(logs, 400)
					}
				}
				return &BuildError{BuildID: buildID, State: status.State, Detail: detail}
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("build %s did not finish within %s", buildID, timeout)
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func waitTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
