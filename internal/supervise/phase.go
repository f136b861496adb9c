package supervise

import (
	"fmt"

	"stagewatch/internal/check"
)

// Phase is the supervisor's position in its control loop.
type Phase uint8

const (
	PhaseInitializing Phase = iota + 1
	PhasePolling
	PhaseStageValidating
	PhaseApprovalPending
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhasePolling:
		return "polling"
	case PhaseStageValidating:
		return "stage_validating"
	case PhaseApprovalPending:
		return "approval_pending"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Transition validates and returns the target phase. Illegal moves
// assert in debug builds and keep the current phase in release builds.
func (p Phase) Transition(to Phase) Phase {
	if to == p {
		return p
	}
	ok := false
	switch p {
	case PhaseInitializing:
		ok = to == PhasePolling || to == PhaseTerminal
	case PhasePolling:
		ok = to == PhaseStageValidating || to == PhaseApprovalPending || to == PhaseTerminal
	case PhaseStageValidating, PhaseApprovalPending:
		ok = to == PhasePolling || to == PhaseTerminal
	}
	check.Assertf(ok, "supervisor phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

// Event is one observable step of the control loop, surfaced to the
// caller's OnEvent hook for progress rendering.
type Event struct {
	Phase   Phase
	Stage   string
	Message string
}

func (e Event) String() string {
	if e.Stage == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Stage, e.Message)
}
