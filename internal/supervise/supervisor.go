// Package supervise runs the polling control loop that follows one
// rollout from trigger to terminal status. Each iteration polls the
// platform, diffs the report against persisted state, and reacts: stage
// completions gate through synthetic load, failures are classified,
// approval checkpoints are delegated, and every notable transition is
// notified exactly once. The loop is single-threaded; concurrency is
// confined to the load generator inside one iteration.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stagewatch/internal/approval"
	"stagewatch/internal/classify"
	"stagewatch/internal/credentials"
	"stagewatch/internal/loadgen"
	"stagewatch/internal/notify"
	"stagewatch/internal/pipeline"
	"stagewatch/internal/platform"
	"stagewatch/internal/retry"
	"stagewatch/internal/rollout"
	"stagewatch/internal/state"
	"stagewatch/internal/telemetry"
)

// DefaultPollInterval is the sleep between status polls.
const DefaultPollInterval = 30 * time.Second

// FailurePolicy decides what happens when a stage's load validation
// fails and nobody is there to be asked.
type FailurePolicy string

const (
	// PolicyHalt stops supervision with an error, leaving the rollout
	// in progress for an operator to inspect.
	PolicyHalt FailurePolicy = "halt"
	// PolicyCancel cancels the remaining stages on the platform.
	PolicyCancel FailurePolicy = "cancel"
	// PolicyContinue records the failed validation and keeps going.
	PolicyContinue FailurePolicy = "continue"
)

// ParseFailurePolicy maps a config string to a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case PolicyHalt, PolicyCancel, PolicyContinue:
		return FailurePolicy(s), nil
	case "":
		return PolicyHalt, nil
	}
	return "", fmt.Errorf("unknown validation failure policy %q (want halt, cancel, or continue)", s)
}

// ValidationError reports a stage whose load validation missed its
// thresholds under the halt policy.
type ValidationError struct {
	Stage  string
	Result rollout.StressTestResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("stage %s failed load validation: %.1f%% success, p95 %.0fms",
		e.Stage, e.Result.SuccessRatePercent, e.Result.P95Ms)
}

// Notifier is the slice of the notification dispatcher the loop needs.
type Notifier interface {
	Send(ctx context.Context, ev notify.Event) notify.DeliveryStatus
}

// Config tunes one supervision run.
type Config struct {
	PollInterval time.Duration

	// Stress enables post-stage load validation. Nil disables the gate.
	Stress *loadgen.Config

	// OnFailedValidation applies when no DecideValidation hook is set.
	// Default halt.
	OnFailedValidation FailurePolicy
}

// Supervisor owns the control loop for one rollout at a time. Exactly
// one supervisor may hold a rollout's lock; a second invocation for the
// same id fails fast with state.BusyError.
type Supervisor struct {
	Platform platform.Client
	Store    *state.Store
	Notifier Notifier

	Approvals *approval.Handler
	Hooks     *pipeline.Hooks
	Creds     credentials.Provider
	Tracer    trace.Tracer

	Config Config

	// Retry wraps platform calls; zero value uses executor defaults.
	Retry retry.Policy

	// Owner identifies this process in lock records. Defaults to
	// state.DefaultOwner().
	Owner string

	// DecideValidation, when set, is asked what to do about a failed
	// stage validation (interactive runs wire a prompt here). When nil
	// the static Config.OnFailedValidation applies.
	DecideValidation func(ctx context.Context, stage string, res rollout.StressTestResult) (FailurePolicy, error)

	// LoadGen is a seam over loadgen.Run.
	LoadGen func(ctx context.Context, cfg loadgen.Config, creds credentials.Provider) (rollout.StressTestResult, error)

	// OnEvent observes loop progress, for rendering. May be nil.
	OnEvent func(Event)

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Follow triggers a new rollout and supervises it to a terminal status.
func (s *Supervisor) Follow(ctx context.Context, spec platform.RolloutSpec) (*rollout.State, error) {
	trigger := func(ctx context.Context) (string, error) {
		return s.Platform.Trigger(ctx, spec)
	}
	rolloutID, err := retry.DoValue(ctx, s.Retry, trigger)
	if err != nil {
		return nil, fmt.Errorf("trigger rollout: %w", err)
	}
	slog.Info("rollout triggered", "rollout_id", rolloutID, "service_group", spec.ServiceGroupID, "environment", spec.Environment)

	st := rollout.New(rolloutID, spec.ServiceGroupID, spec.Environment, nil, s.now())
	st.ArtifactVersion = spec.ArtifactVersion
	st.StageMapVersion = spec.StageMapVersion
	st.BranchName = spec.BranchName
	return st, s.supervise(ctx, st)
}

// Resume picks up supervision of a known rollout id. Existing state is
// loaded and never re-triggered; a missing document means monitoring
// begins fresh for an externally triggered rollout. A corrupt document
// is a fatal startup error.
func (s *Supervisor) Resume(ctx context.Context, rolloutID string) (*rollout.State, error) {
	st, err := s.Store.Read(rolloutID)
	switch {
	case errors.Is(err, state.ErrNotFound):
		st = rollout.New(rolloutID, "", "", nil, s.now())
	case err != nil:
		return nil, err
	case st.OverallStatus.Terminal():
		slog.Info("rollout already terminal", "rollout_id", rolloutID, "status", st.OverallStatus)
		return st, nil
	}
	return st, s.supervise(ctx, st)
}

// Cancel asks the platform to cancel a rollout. The supervising loop,
// wherever it runs, observes the cancellation on its next poll.
func (s *Supervisor) Cancel(ctx context.Context, rolloutID, reason string) error {
	cancel := func(ctx context.Context) error {
		return s.Platform.Cancel(ctx, rolloutID, reason)
	}
	if err := retry.Do(ctx, s.Retry, cancel); err != nil {
		return fmt.Errorf("cancel rollout %s: %w", rolloutID, err)
	}
	slog.Info("rollout cancel requested", "rollout_id", rolloutID, "reason", reason)
	return nil
}

func (s *Supervisor) supervise(ctx context.Context, st *rollout.State) (err error) {
	owner := s.Owner
	if owner == "" {
		owner = state.DefaultOwner()
	}
	lock, err := s.Store.Acquire(st.RolloutID, owner)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			slog.Warn("release rollout lock", "rollout_id", st.RolloutID, "err", rerr)
		}
	}()

	op := telemetry.StartRollout(ctx, s.Tracer, st.RolloutID, st.Environment)
	defer func() { op.End(err) }()
	ctx = op.Context()

	if err := s.persist(st); err != nil {
		return err
	}
	s.notifyOnce(ctx, st, rollout.EventRolloutStarted, "", nil)

	return s.run(ctx, op, st)
}

func (s *Supervisor) run(ctx context.Context, op *telemetry.Operation, st *rollout.State) error {
	phase := PhaseInitializing
	phase = s.transition(phase, PhasePolling, st, "watching rollout")

	for {
		report, err := s.poll(ctx, op, st.RolloutID)
		if err != nil {
			st.RecordError(classify.Error(err, st.CurrentStage, "", s.now()), s.now())
			s.persistBestEffort(st)
			return fmt.Errorf("poll rollout %s: %w", st.RolloutID, err)
		}

		outcome, err := Evaluate(st, report)
		if err != nil {
			st.RecordError(classify.Error(err, st.CurrentStage, "", s.now()), s.now())
			s.persistBestEffort(st)
			return err
		}

		// A terminal report can arrive while the state is still Pending;
		// the status table only leaves Pending through InProgress.
		if st.OverallStatus == rollout.StatusPending &&
			(outcome.Status == rollout.StatusInProgress || outcome.Status == rollout.StatusCompleted) {
			st.SetStatus(rollout.StatusInProgress, s.now())
		}
		if !outcome.Status.Terminal() {
			st.CurrentStage = outcome.CurrentStage
			if outcome.PendingStages != nil {
				st.PendingStages = outcome.PendingStages
			}
		}

		for _, raw := range outcome.NewFailures {
			ce := classify.Classify(raw, report.Stage, "", s.now())
			st.RecordError(ce, s.now())
			slog.Warn("platform reported failure",
				"rollout_id", st.RolloutID, "category", ce.Category, "message", raw)
		}
		if err := s.persist(st); err != nil {
			return err
		}

		for _, stage := range outcome.NewStages {
			phase = s.transition(phase, PhaseStageValidating, st, "stage completed: "+stage)
			done, err := s.handleStage(ctx, op, st, stage)
			if err != nil {
				return err
			}
			if done {
				phase = s.transition(phase, PhaseTerminal, st, "cancelled after failed validation")
				return nil
			}
			phase = s.transition(phase, PhasePolling, st, "stage handled: "+stage)
		}

		if len(outcome.Checkpoints) > 0 && s.Approvals != nil {
			phase = s.transition(phase, PhaseApprovalPending, st, "approval checkpoint open")
			perr := s.Approvals.Process(ctx, st, outcome.Checkpoints)
			if err := s.persist(st); err != nil {
				return err
			}
			if perr != nil {
				return perr
			}
			phase = s.transition(phase, PhasePolling, st, "approvals processed")
		}

		if outcome.Status.Terminal() {
			phase = s.transition(phase, PhaseTerminal, st, "rollout "+outcome.Status.String())
			return s.finish(ctx, st, outcome.Status)
		}

		if err := s.sleep(ctx, s.pollInterval()); err != nil {
			return fmt.Errorf("supervision interrupted: %w", err)
		}
	}
}

// handleStage runs the per-stage reaction: notify, pre-stage pipeline,
// load validation, post-stage pipeline. Reports done=true when the
// rollout was cancelled under the validation failure policy.
func (s *Supervisor) handleStage(ctx context.Context, op *telemetry.Operation, st *rollout.State, stage string) (done bool, err error) {
	st.CompleteStage(stage, s.now())
	if err := s.persist(st); err != nil {
		return false, err
	}
	s.notifyOnce(ctx, st, rollout.EventStageCompleted, stage, func(ev *notify.Event) {
		ev.Stage = stage
	})

	preErr := op.RunStep(ctx, "pipeline.pre", func(ctx context.Context) error {
		return s.Hooks.RunPre(ctx, st.RolloutID, stage)
	}, attribute.String(telemetry.StageKey, stage))
	if preErr != nil {
		st.RecordError(classify.Error(preErr, stage, "", s.now()), s.now())
		s.persistBestEffort(st)
		return false, preErr
	}

	if s.Config.Stress != nil {
		res, err := s.validateStage(ctx, op, st, stage)
		if err != nil {
			return false, err
		}
		if !res.Passed {
			done, err = s.reactToFailedValidation(ctx, st, stage, res)
			if done || err != nil {
				return done, err
			}
		}
	}

	s.Hooks.RunPost(ctx, st.RolloutID, stage)
	return false, nil
}

func (s *Supervisor) validateStage(ctx context.Context, op *telemetry.Operation, st *rollout.State, stage string) (rollout.StressTestResult, error) {
	cfg := *s.Config.Stress
	cfg.Stage = stage

	var res rollout.StressTestResult
	err := op.RunStep(ctx, "loadgen.burst", func(ctx context.Context) error {
		var lerr error
		res, lerr = s.loadgen(ctx, cfg)
		return lerr
	}, attribute.String(telemetry.StageKey, stage))
	if err != nil {
		st.RecordError(classify.Error(err, stage, cfg.Endpoint, s.now()), s.now())
		s.persistBestEffort(st)
		return res, fmt.Errorf("validate stage %s: %w", stage, err)
	}

	st.RecordStressResult(res, s.now())
	if err := s.persist(st); err != nil {
		return res, err
	}
	s.notifyOnce(ctx, st, rollout.EventStressTestResult, stage, func(ev *notify.Event) {
		ev.Stage = stage
		ev.Stress = &res
	})
	return res, nil
}

func (s *Supervisor) reactToFailedValidation(ctx context.Context, st *rollout.State, stage string, res rollout.StressTestResult) (done bool, err error) {
	policy := s.Config.OnFailedValidation
	if s.DecideValidation != nil {
		policy, err = s.DecideValidation(ctx, stage, res)
		if err != nil {
			return false, fmt.Errorf("decide on failed validation for stage %s: %w", stage, err)
		}
	}
	if policy == "" {
		policy = PolicyHalt
	}

	switch policy {
	case PolicyContinue:
		slog.Warn("stage validation failed, continuing per policy",
			"rollout_id", st.RolloutID, "stage", stage,
			"success_rate", res.SuccessRatePercent, "p95_ms", res.P95Ms)
		return false, nil
	case PolicyCancel:
		reason := (&ValidationError{Stage: stage, Result: res}).Error()
		if err := s.Cancel(ctx, st.RolloutID, reason); err != nil {
			return false, err
		}
		st.SetStatus(rollout.StatusCancelled, s.now())
		s.notifyOnce(ctx, st, rollout.EventRolloutCancelled, "", nil)
		if err := s.persist(st); err != nil {
			return true, err
		}
		return true, nil
	default:
		verr := &ValidationError{Stage: stage, Result: res}
		st.RecordError(classify.Classify(verr.Error(), stage, res.Endpoint, s.now()), s.now())
		s.persistBestEffort(st)
		return false, verr
	}
}

func (s *Supervisor) finish(ctx context.Context, st *rollout.State, status rollout.Status) error {
	st.SetStatus(status, s.now())

	switch status {
	case rollout.StatusCompleted:
		s.notifyOnce(ctx, st, rollout.EventRolloutCompleted, "", func(ev *notify.Event) {
			ev.CompletedStages = st.CompletedStages
		})
	case rollout.StatusFailed:
		if len(st.Errors) == 0 {
			st.RecordError(classify.Classify("rollout reported failed without detail", "", "", s.now()), s.now())
		}
		last := st.Errors[len(st.Errors)-1]
		s.notifyOnce(ctx, st, rollout.EventRolloutFailed, "", func(ev *notify.Event) {
			ev.Error = &last
		})
	case rollout.StatusCancelled:
		s.notifyOnce(ctx, st, rollout.EventRolloutCancelled, "", nil)
	}

	if err := s.persist(st); err != nil {
		return err
	}

	// Completed documents move to the archive; failed and cancelled
	// ones stay in place for post-mortem.
	if status == rollout.StatusCompleted {
		if err := s.Store.Archive(st.RolloutID); err != nil {
			slog.Warn("archive rollout state", "rollout_id", st.RolloutID, "err", err)
		}
	}
	return nil
}

func (s *Supervisor) poll(ctx context.Context, op *telemetry.Operation, rolloutID string) (platform.StatusReport, error) {
	var report platform.StatusReport
	err := op.RunStep(ctx, "platform.status", func(ctx context.Context) error {
		var perr error
		report, perr = retry.DoValue(ctx, s.Retry, func(ctx context.Context) (platform.StatusReport, error) {
			return s.Platform.Status(ctx, rolloutID)
		})
		return perr
	})
	return report, err
}

// notifyOnce sends one event per dedupe key for the lifetime of the
// state document. Delivery status does not matter for dedupe: a
// logged-fallback event was still recorded and is never re-sent.
func (s *Supervisor) notifyOnce(ctx context.Context, st *rollout.State, typ rollout.EventType, qualifier string, fill func(*notify.Event)) {
	key := rollout.NotificationKey(typ, qualifier)
	if st.Notified(key) {
		return
	}
	if s.Notifier != nil {
		ev := notify.Event{
			Type:           typ,
			RolloutID:      st.RolloutID,
			ServiceGroupID: st.ServiceGroupID,
			Environment:    st.Environment,
			Status:         st.OverallStatus.String(),
			Timestamp:      s.now(),
		}
		if fill != nil {
			fill(&ev)
		}
		s.Notifier.Send(ctx, ev)
	}
	st.MarkNotified(key, s.now())
	s.persistBestEffort(st)
}

func (s *Supervisor) transition(from, to Phase, st *rollout.State, message string) Phase {
	next := from.Transition(to)
	if s.OnEvent != nil {
		s.OnEvent(Event{Phase: next, Stage: st.CurrentStage, Message: message})
	}
	return next
}

func (s *Supervisor) persist(st *rollout.State) error {
	if err := s.Store.Write(st); err != nil {
		return fmt.Errorf("persist rollout %s: %w", st.RolloutID, err)
	}
	return nil
}

func (s *Supervisor) persistBestEffort(st *rollout.State) {
	if err := s.Store.Write(st); err != nil {
		slog.Warn("persist rollout state", "rollout_id", st.RolloutID, "err", err)
	}
}

func (s *Supervisor) loadgen(ctx context.Context, cfg loadgen.Config) (rollout.StressTestResult, error) {
	if s.LoadGen != nil {
		return s.LoadGen(ctx, cfg, s.Creds)
	}
	return loadgen.Run(ctx, cfg, s.Creds)
}

func (s *Supervisor) pollInterval() time.Duration {
	if s.Config.PollInterval > 0 {
		return s.Config.PollInterval
	}
	return DefaultPollInterval
}

func (s *Supervisor) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
