// Package approval drives human-approval checkpoints surfaced by the
// platform. Each checkpoint gets at most one ApprovalRequired
// notification and at most one resolution call, tracked in the rollout
// state so restarts never repeat either.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stagewatch/internal/notify"
	"stagewatch/internal/platform"
	"stagewatch/internal/retry"
	"stagewatch/internal/rollout"
)

// Resolution is a prompter's answer for one checkpoint.
type Resolution uint8

const (
	// StillPending leaves the checkpoint open; polling continues and the
	// prompter is asked again next cycle.
	StillPending Resolution = iota
	Approved
	Rejected
)

func (r Resolution) String() string {
	switch r {
	case StillPending:
		return "still-pending"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("Resolution(%d)", uint8(r))
}

// Prompter obtains a decision for an open checkpoint. Interactive
// implementations ask the operator; unattended ones answer per policy.
type Prompter interface {
	Resolve(ctx context.Context, cp platform.ApprovalCheckpoint) (Resolution, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, cp platform.ApprovalCheckpoint) (Resolution, error)

func (f PrompterFunc) Resolve(ctx context.Context, cp platform.ApprovalCheckpoint) (Resolution, error) {
	return f(ctx, cp)
}

// Unattended returns a prompter that never decides. Checkpoints stay
// open for out-of-band resolution while supervision keeps polling.
func Unattended() Prompter {
	return PrompterFunc(func(context.Context, platform.ApprovalCheckpoint) (Resolution, error) {
		return StillPending, nil
	})
}

// Notifier is the slice of the notification dispatcher the handler needs.
type Notifier interface {
	Send(ctx context.Context, ev notify.Event) notify.DeliveryStatus
}

// Handler processes the approval checkpoints reported by one poll.
type Handler struct {
	Platform platform.Client
	Notifier Notifier
	Prompter Prompter

	// Retry wraps the resolution API call; zero value uses executor defaults.
	Retry retry.Policy

	Now func() time.Time
}

// Process walks the open checkpoints from a status report. For each one
// it notifies once, then asks the prompter; a decision is submitted to
// the platform exactly once and recorded in the state. StillPending
// checkpoints are left for the next poll cycle.
func (h *Handler) Process(ctx context.Context, st *rollout.State, checkpoints []platform.ApprovalCheckpoint) error {
	now := h.now()
	for _, cp := range checkpoints {
		if cp.ID == "" {
			slog.Warn("approval checkpoint without id ignored", "rollout", st.RolloutID, "stage", cp.Stage)
			continue
		}
		if !st.ApprovalNotified(cp.ID) {
			h.notify(ctx, st, cp, now)
		}
		if st.ApprovalResolved(cp.ID) {
			continue
		}

		decision, err := h.prompt(ctx, cp)
		if err != nil {
			return fmt.Errorf("approval %s: %w", cp.ID, err)
		}
		if decision == StillPending {
			slog.Debug("approval still pending", "rollout", st.RolloutID, "checkpoint", cp.ID)
			continue
		}

		approve := decision == Approved
		submit := func(ctx context.Context) error {
			return h.Platform.ResolveApproval(ctx, cp.ID, approve)
		}
		if err := retry.Do(ctx, h.Retry, submit); err != nil {
			return fmt.Errorf("resolve approval %s: %w", cp.ID, err)
		}
		st.MarkApprovalResolved(cp.ID, now)
		slog.Info("approval resolved", "rollout", st.RolloutID, "checkpoint", cp.ID, "decision", decision)
	}
	return nil
}

func (h *Handler) notify(ctx context.Context, st *rollout.State, cp platform.ApprovalCheckpoint, now time.Time) {
	if h.Notifier != nil {
		h.Notifier.Send(ctx, notify.Event{
			Type:           rollout.EventApprovalRequired,
			RolloutID:      st.RolloutID,
			ServiceGroupID: st.ServiceGroupID,
			Environment:    st.Environment,
			Stage:          cp.Stage,
			CheckpointID:   cp.ID,
			Description:    cp.Description,
			Timestamp:      now,
		})
	}
	st.MarkApprovalNotified(cp.ID, now)
}

func (h *Handler) prompt(ctx context.Context, cp platform.ApprovalCheckpoint) (Resolution, error) {
	if h.Prompter == nil {
		return StillPending, nil
	}
	return h.Prompter.Resolve(ctx, cp)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
