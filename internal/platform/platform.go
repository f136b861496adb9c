// Package platform is the thin client for the external rollout platform.
// The platform owns the rollout; stagewatch only triggers, observes,
// cancels, and resolves approvals through this contract.
package platform

import (
	"context"
	"fmt"
)

// RolloutSpec describes what to trigger.
type RolloutSpec struct {
	ServiceGroupID  string `json:"service_group_id"`
	Environment     string `json:"environment"`
	ArtifactVersion string `json:"artifact_version,omitempty"`
	StageMapVersion string `json:"stage_map_version,omitempty"`
	BranchName      string `json:"branch_name,omitempty"`
}

// RegionStatus is the platform's view of one region inside a stage.
type RegionStatus struct {
	Region string `json:"region"`
	Status string `json:"status"`
}

// ApprovalCheckpoint is a human-approval gate awaiting input.
type ApprovalCheckpoint struct {
	ID          string `json:"id"`
	Stage       string `json:"stage,omitempty"`
	Description string `json:"description,omitempty"`
}

// StatusReport is one poll's snapshot of a rollout.
type StatusReport struct {
	RolloutID           string               `json:"rollout_id"`
	Stage               string               `json:"stage,omitempty"`
	Status              string               `json:"status"`
	Regions             []RegionStatus       `json:"regions,omitempty"`
	CompletedStages     []string             `json:"completed_stages,omitempty"`
	PendingStages       []string             `json:"pending_stages,omitempty"`
	Errors              []string             `json:"errors,omitempty"`
	ApprovalCheckpoints []ApprovalCheckpoint `json:"approval_checkpoints,omitempty"`
}

// Client is the rollout platform contract.
type Client interface {
	Trigger(ctx context.Context, spec RolloutSpec) (rolloutID string, err error)
	Status(ctx context.Context, rolloutID string) (StatusReport, error)
	Cancel(ctx context.Context, rolloutID, reason string) error
	ResolveApproval(ctx context.Context, checkpointID string, approve bool) error
}

// APIError is a non-2xx platform response. Rate limits, request
// timeouts, and server errors are transient for the retry executor;
// everything else fails fast.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rollout platform: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("rollout platform: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Transient() bool {
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}
