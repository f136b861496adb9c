// Package rollout holds the persisted state document for one supervised
// rollout and the record types appended to it. The document is the single
// source of truth for an in-flight rollout; only the supervisor mutates
// it, under the state store's lock.
package rollout

import (
	"slices"
	"time"
)

// State is the persisted state of a single rollout.
//
// CompletedStages never shrinks or reorders. OverallStatus only moves
// forward (see Status.Transition). LastUpdateTime is monotonically
// non-decreasing.
type State struct {
	RolloutID      string `json:"rollout_id"`
	ServiceGroupID string `json:"service_group_id"`
	Environment    string `json:"environment"`

	CurrentStage    string   `json:"current_stage,omitempty"`
	CompletedStages []string `json:"completed_stages"`
	PendingStages   []string `json:"pending_stages"`

	OverallStatus Status `json:"overall_status"`

	Errors            []ClassifiedError  `json:"errors,omitempty"`
	StressTestResults []StressTestResult `json:"stress_test_results,omitempty"`
	NotificationsSent []string           `json:"notifications_sent,omitempty"`
	ApprovalsNotified []string           `json:"approvals_notified,omitempty"`
	ApprovalsResolved []string           `json:"approvals_resolved,omitempty"`

	StartTime      time.Time `json:"start_time"`
	LastUpdateTime time.Time `json:"last_update_time"`

	ArtifactVersion string `json:"artifact_version,omitempty"`
	StageMapVersion string `json:"stage_map_version,omitempty"`
	BranchName      string `json:"branch_name,omitempty"`
}

// New creates the state document for a freshly triggered rollout.
func New(rolloutID, serviceGroupID, environment string, pendingStages []string, now time.Time) *State {
	return &State{
		RolloutID:       rolloutID,
		ServiceGroupID:  serviceGroupID,
		Environment:     environment,
		CompletedStages: []string{},
		PendingStages:   slices.Clone(pendingStages),
		OverallStatus:   StatusPending,
		StartTime:       now,
		LastUpdateTime:  now,
	}
}

// Touch advances LastUpdateTime, never moving it backwards.
func (s *State) Touch(now time.Time) {
	if now.After(s.LastUpdateTime) {
		s.LastUpdateTime = now
	}
}

// SetStatus moves OverallStatus through the forward-only transition table.
func (s *State) SetStatus(to Status, now time.Time) {
	s.OverallStatus = s.OverallStatus.Transition(to)
	if s.OverallStatus.Terminal() {
		s.CurrentStage = ""
	}
	s.Touch(now)
}

// CompleteStage appends a stage to CompletedStages and removes it from
// PendingStages. Reports whether the stage was newly recorded; completed
// stages are never removed or reordered, so a repeat is a no-op.
func (s *State) CompleteStage(stage string, now time.Time) bool {
	if slices.Contains(s.CompletedStages, stage) {
		return false
	}
	s.CompletedStages = append(s.CompletedStages, stage)
	if i := slices.Index(s.PendingStages, stage); i >= 0 {
		s.PendingStages = slices.Delete(s.PendingStages, i, i+1)
	}
	if s.CurrentStage == stage {
		s.CurrentStage = ""
	}
	s.Touch(now)
	return true
}

// RecordError appends a classified failure.
func (s *State) RecordError(e ClassifiedError, now time.Time) {
	s.Errors = append(s.Errors, e)
	s.Touch(now)
}

// RecordStressResult appends a load-generation record.
func (s *State) RecordStressResult(r StressTestResult, now time.Time) {
	s.StressTestResults = append(s.StressTestResults, r)
	s.Touch(now)
}

// Notified reports whether a notification key was already delivered.
func (s *State) Notified(key string) bool {
	return slices.Contains(s.NotificationsSent, key)
}

// MarkNotified records a delivered notification key. Repeats are no-ops.
func (s *State) MarkNotified(key string, now time.Time) {
	if s.Notified(key) {
		return
	}
	s.NotificationsSent = append(s.NotificationsSent, key)
	s.Touch(now)
}

// ApprovalNotified reports whether an ApprovalRequired notification went
// out for the given checkpoint id.
func (s *State) ApprovalNotified(checkpointID string) bool {
	return slices.Contains(s.ApprovalsNotified, checkpointID)
}

func (s *State) MarkApprovalNotified(checkpointID string, now time.Time) {
	if s.ApprovalNotified(checkpointID) {
		return
	}
	s.ApprovalsNotified = append(s.ApprovalsNotified, checkpointID)
	s.Touch(now)
}

// ApprovalResolved reports whether the approval API was already invoked
// for the given checkpoint id. A resolved checkpoint is never re-submitted.
func (s *State) ApprovalResolved(checkpointID string) bool {
	return slices.Contains(s.ApprovalsResolved, checkpointID)
}

func (s *State) MarkApprovalResolved(checkpointID string, now time.Time) {
	if s.ApprovalResolved(checkpointID) {
		return
	}
	s.ApprovalsResolved = append(s.ApprovalsResolved, checkpointID)
	s.Touch(now)
}
