// Package cmdutil wires configuration into the collaborator graph the
// commands share: state store, audit log, credential chain, platform and
// pipeline clients, notifier, and the supervisor itself.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"stagewatch/cmd/stagewatch/ui"
	"stagewatch/config"
	"stagewatch/internal/approval"
	"stagewatch/internal/auditlog"
	"stagewatch/internal/clockcheck"
	"stagewatch/internal/credentials"
	"stagewatch/internal/loadgen"
	"stagewatch/internal/notify"
	"stagewatch/internal/pipeline"
	"stagewatch/internal/platform"
	"stagewatch/internal/rollout"
	"stagewatch/internal/state"
	"stagewatch/internal/supervise"
	"stagewatch/internal/telemetry"
)

// App bundles the wired collaborators for one invocation.
type App struct {
	Config   *config.Config
	Store    *state.Store
	Audit    *auditlog.Log
	Creds    credentials.Provider
	Platform *platform.HTTPClient
	Notifier *notify.Dispatcher
}

// Build loads the config file and wires the collaborator graph.
// configPath empty means the default location.
func Build(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Store:  state.NewStore(cfg.StateDir),
		Audit:  auditlog.New(cfg.AuditLog),
	}

	chain := &credentials.Chain{
		Static:  cfg.Credentials.Token,
		EnvVar:  cfg.Credentials.EnvVar,
		File:    cfg.Credentials.File,
		Command: cfg.Credentials.Command,
	}
	if *chain != (credentials.Chain{}) {
		app.Creds = chain
	}

	app.Notifier = notify.NewDispatcher(cfg.Notify.WebhookURL, app.Audit)

	if cfg.Platform.BaseURL != "" {
		app.Platform = platform.NewHTTPClient(cfg.Platform.BaseURL, app.Creds)
		if cfg.Platform.TokenScope != "" {
			app.Platform.Scope = cfg.Platform.TokenScope
		}
	}
	return app, nil
}

// RequirePlatform fails when no rollout platform is configured.
func (a *App) RequirePlatform() error {
	if a.Platform == nil {
		return errors.New("no rollout platform configured: set platform.base_url in " + config.Path())
	}
	return nil
}

// StressConfig builds the load-validation config, nil when disabled.
func (a *App) StressConfig() *loadgen.Config {
	s := a.Config.Stress
	if s.Endpoint == "" {
		return nil
	}
	return &loadgen.Config{
		Endpoint:           s.Endpoint,
		Method:             s.Method,
		Requests:           s.Requests,
		Concurrency:        s.Concurrency,
		Timeout:            s.Timeout.Std(),
		ExpectedStatuses:   s.ExpectedStatuses,
		SuccessThreshold:   s.SuccessThreshold,
		LatencyThresholdMs: s.LatencyThresholdMs,
		RequiresAuth:       s.RequiresAuth,
		TokenScope:         s.TokenScope,
	}
}

// PipelineClient builds the pipeline platform client. Fails when no
// pipeline platform is configured.
func (a *App) PipelineClient() (*pipeline.HTTPClient, error) {
	if a.Config.Pipeline.BaseURL == "" {
		return nil, errors.New("no pipeline platform configured: set pipeline.base_url in " + config.Path())
	}
	return pipeline.NewHTTPClient(a.Config.Pipeline.BaseURL, a.Creds), nil
}

func (a *App) hooks() *pipeline.Hooks {
	p := a.Config.Pipeline
	if p.BaseURL == "" || (p.PreStageID == "" && p.PostStageID == "") {
		return nil
	}
	client, _ := a.PipelineClient()
	return &pipeline.Hooks{
		Client:      client,
		PreStageID:  p.PreStageID,
		PostStageID: p.PostStageID,
		Timeout:     p.Timeout.Std(),
	}
}

// Supervisor wires the full control loop. onFailure overrides the
// configured validation failure policy when non-empty.
func (a *App) Supervisor(onFailure string) (*supervise.Supervisor, error) {
	if err := a.RequirePlatform(); err != nil {
		return nil, err
	}

	policyRaw := onFailure
	if policyRaw == "" {
		policyRaw = a.Config.OnFailedValidation
	}
	policy, err := supervise.ParseFailurePolicy(policyRaw)
	if err != nil {
		return nil, err
	}

	// State timestamps and lock staleness lean on the local clock.
	if a.Config.ClockCheck {
		if drift := clockcheck.New().Check(); !drift.Healthy {
			if drift.Error != "" {
				slog.Warn("clock check failed", "err", drift.Error)
			} else {
				slog.Warn("local clock drift detected", "offset", drift.Offset)
			}
		}
	}

	s := &supervise.Supervisor{
		Platform: a.Platform,
		Store:    a.Store,
		Notifier: a.Notifier,
		Hooks:    a.hooks(),
		Creds:    a.Creds,
		Tracer:   telemetry.Tracer(),
		Config: supervise.Config{
			PollInterval:       a.Config.PollInterval.Std(),
			Stress:             a.StressConfig(),
			OnFailedValidation: policy,
		},
		Approvals: &approval.Handler{
			Platform: a.Platform,
			Notifier: a.Notifier,
			Prompter: approvalPrompter(),
		},
		OnEvent: renderEvent,
	}
	if ui.IsInteractive() && onFailure == "" {
		s.DecideValidation = decideValidation(policy)
	}
	return s, nil
}

// approvalPrompter surfaces checkpoints to the operator when a terminal
// is attached; otherwise checkpoints stay open for out-of-band approval.
func approvalPrompter() approval.Prompter {
	if !ui.IsInteractive() {
		return approval.Unattended()
	}
	return approval.PrompterFunc(func(_ context.Context, cp platform.ApprovalCheckpoint) (approval.Resolution, error) {
		q := fmt.Sprintf("Approve checkpoint %s", cp.ID)
		if cp.Stage != "" {
			q += " for stage " + cp.Stage
		}
		if cp.Description != "" {
			q += " (" + cp.Description + ")"
		}
		q += "?"

		yes, err := ui.Confirm(q, "resolve later with 'stagewatch approve'")
		if err != nil {
			// A declined or unavailable prompt leaves the checkpoint
			// open; rejection must be explicit via the approve command.
			return approval.StillPending, nil
		}
		if yes {
			return approval.Approved, nil
		}
		return approval.StillPending, nil
	})
}

// decideValidation asks the operator what to do about a failed stage
// validation, falling back to the configured policy when the prompt is
// unavailable.
func decideValidation(fallback supervise.FailurePolicy) func(context.Context, string, rollout.StressTestResult) (supervise.FailurePolicy, error) {
	return func(_ context.Context, stage string, res rollout.StressTestResult) (supervise.FailurePolicy, error) {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("stage %s failed validation: %s", stage, ui.StressSummary(res)))

		yes, err := ui.Confirm("Cancel the remaining stages?", "use --on-failure to decide up front")
		if err != nil {
			if errors.Is(err, ui.ErrCancelled) {
				return supervise.PolicyHalt, nil
			}
			return fallback, nil
		}
		if yes {
			return supervise.PolicyCancel, nil
		}
		return supervise.PolicyContinue, nil
	}
}

func renderEvent(ev supervise.Event) {
	fmt.Fprintln(os.Stderr, ui.InfoMsg("%s", ev.String()))
}

// Report renders the terminal outcome of a supervision run. Shared by
// the follow and resume commands.
func Report(st *rollout.State, err error) error {
	if err != nil {
		var verr *supervise.ValidationError
		if errors.As(err, &verr) && st != nil {
			fmt.Println(ui.ErrorMsg("%s", verr.Error()))
			fmt.Println(ui.Muted("supervision halted; resume with 'stagewatch resume " + st.RolloutID + "'"))
		}
		return err
	}

	switch st.OverallStatus {
	case rollout.StatusCompleted:
		fmt.Println(ui.SuccessMsg("rollout %s completed", st.RolloutID))
	case rollout.StatusCancelled:
		fmt.Println(ui.WarnMsg("rollout %s cancelled", st.RolloutID))
	case rollout.StatusFailed:
		fmt.Println(ui.ErrorMsg("rollout %s failed", st.RolloutID))
	default:
		fmt.Println(ui.InfoMsg("rollout %s is %s", st.RolloutID, st.OverallStatus))
	}
	PrintState(st)
	return nil
}

// PrintState renders a rollout state document.
func PrintState(st *rollout.State) {
	pairs := []ui.Pair{
		ui.KV("Rollout", st.RolloutID),
		ui.KV("Service Group", st.ServiceGroupID),
		ui.KV("Environment", st.Environment),
		ui.KV("Status", ui.Status(st.OverallStatus)),
		ui.KV("Completed", fmt.Sprintf("%d stage(s)", len(st.CompletedStages))),
		ui.KV("Started", st.StartTime.Format("2006-01-02 15:04:05 MST")),
		ui.KV("Updated", st.LastUpdateTime.Format("2006-01-02 15:04:05 MST")),
	}
	if st.CurrentStage != "" {
		pairs = append(pairs, ui.KV("Current Stage", st.CurrentStage))
	}
	if st.ArtifactVersion != "" {
		pairs = append(pairs, ui.KV("Artifact", st.ArtifactVersion))
	}
	fmt.Print(ui.KeyValues("  ", pairs...))

	for _, r := range st.StressTestResults {
		fmt.Println("  " + ui.Muted(r.Stage) + "  " + ui.StressSummary(r))
	}
	for _, e := range st.Errors {
		fmt.Println("  " + ui.ErrorMsg("%s: %s", e.Category, e.RawMessage))
		if e.Recommendation != "" {
			fmt.Println("    " + ui.Muted(e.Recommendation))
		}
	}
}
