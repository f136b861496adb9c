package supervise

import (
	"fmt"
	"slices"

	"stagewatch/internal/platform"
	"stagewatch/internal/rollout"
)

// Outcome is the pure diff of one status report against persisted state.
// It names what changed; the loop decides what to do about it.
type Outcome struct {
	Status rollout.Status

	// NewStages are completed stages the state has not recorded yet, in
	// report order.
	NewStages []string

	// NewFailures are platform-reported error messages not yet present
	// in the state's classified history.
	NewFailures []string

	Checkpoints []platform.ApprovalCheckpoint

	CurrentStage  string
	PendingStages []string
}

// Evaluate diffs a status report against the persisted state without
// touching either. Decision logic stays here, pure and testable; all
// I/O lives in the loop around it.
func Evaluate(st *rollout.State, report platform.StatusReport) (Outcome, error) {
	status, err := rollout.ParseStatus(report.Status)
	if err != nil {
		return Outcome{}, fmt.Errorf("status report for rollout %s: %w", st.RolloutID, err)
	}

	out := Outcome{
		Status:        status,
		CurrentStage:  report.Stage,
		PendingStages: report.PendingStages,
		Checkpoints:   report.ApprovalCheckpoints,
	}

	for _, stage := range report.CompletedStages {
		if !slices.Contains(st.CompletedStages, stage) {
			out.NewStages = append(out.NewStages, stage)
		}
	}

	for _, msg := range report.Errors {
		if msg == "" || knownFailure(st, msg) {
			continue
		}
		out.NewFailures = append(out.NewFailures, msg)
	}
	return out, nil
}

func knownFailure(st *rollout.State, raw string) bool {
	return slices.ContainsFunc(st.Errors, func(e rollout.ClassifiedError) bool {
		return e.RawMessage == raw
	})
}
