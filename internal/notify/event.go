package notify

import (
	"fmt"
	"time"

	"stagewatch/internal/rollout"
)

// Event is one typed message for the notification channel. The payload
// mirrors the relevant slice of the rollout state; optional context
// fields are omitted from the wire payload, never null-filled.
type Event struct {
	Type            rollout.EventType         `json:"type"`
	RolloutID       string                    `json:"rollout_id"`
	ServiceGroupID  string                    `json:"service_group_id,omitempty"`
	Environment     string                    `json:"environment,omitempty"`
	Stage           string                    `json:"stage,omitempty"`
	Status          string                    `json:"status,omitempty"`
	CheckpointID    string                    `json:"checkpoint_id,omitempty"`
	Description     string                    `json:"description,omitempty"`
	Error           *rollout.ClassifiedError  `json:"error,omitempty"`
	Stress          *rollout.StressTestResult `json:"stress,omitempty"`
	CompletedStages []string                  `json:"completed_stages,omitempty"`
	Timestamp       time.Time                 `json:"timestamp"`
}

// Validate enforces each event type's fixed required-field set.
func (e Event) Validate() error {
	if e.RolloutID == "" {
		return fmt.Errorf("notification %s: rollout id is required", e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("notification %s: timestamp is required", e.Type)
	}
	switch e.Type {
	case rollout.EventRolloutStarted, rollout.EventRolloutCompleted, rollout.EventRolloutCancelled:
		return nil
	case rollout.EventStageCompleted:
		if e.Stage == "" {
			return fmt.Errorf("notification %s: stage is required", e.Type)
		}
	case rollout.EventApprovalRequired:
		if e.CheckpointID == "" {
			return fmt.Errorf("notification %s: checkpoint id is required", e.Type)
		}
	case rollout.EventStressTestResult:
		if e.Stress == nil {
			return fmt.Errorf("notification %s: stress result is required", e.Type)
		}
	case rollout.EventRolloutFailed:
		if e.Error == nil {
			return fmt.Errorf("notification %s: classified error is required", e.Type)
		}
	default:
		return fmt.Errorf("unknown notification type %q", e.Type)
	}
	return nil
}
