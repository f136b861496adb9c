package rollout

import (
	"fmt"

	"stagewatch/internal/check"
)

// Status is the overall lifecycle state of a rollout. Transitions only
// move forward: Pending -> InProgress -> {Completed, Failed, Cancelled}.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Transition validates and returns the target status. Illegal moves
// assert in debug builds and keep the current status in release builds,
// so a terminal state can never be left.
func (s Status) Transition(to Status) Status {
	if to == s {
		return s
	}
	ok := false
	switch s {
	case StatusPending:
		ok = to == StatusInProgress || to == StatusFailed || to == StatusCancelled
	case StatusInProgress:
		ok = to.Terminal()
	}
	check.Assertf(ok, "rollout status transition: %s -> %s", s, to)
	if !ok {
		return s
	}
	return to
}

// ParseStatus maps a wire status string to a Status.
func ParseStatus(s string) (Status, error) {
	for _, candidate := range []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled} {
		if candidate.String() == s {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("unknown rollout status %q", s)
}

// MarshalText persists statuses as their string names.
func (s Status) MarshalText() ([]byte, error) {
	if s.String() == "unknown" {
		return nil, fmt.Errorf("marshal rollout status: invalid value %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
