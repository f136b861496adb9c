// Package pipeline is the thin client for the external CI/CD pipeline
// platform, plus the optional pre/post-stage hooks the supervisor runs
// around stage transitions.
package pipeline

import (
	"context"
	"fmt"
)

// BuildStatus is the pipeline platform's view of one build.
type BuildStatus struct {
	BuildID string `json:"build_id"`
	// State is one of: queued, running, succeeded, failed, cancelled.
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Finished reports whether the build reached a terminal state.
func (b BuildStatus) Finished() bool {
	return b.State == "succeeded" || b.State == "failed" || b.State == "cancelled"
}

// Succeeded reports a successful terminal build.
func (b BuildStatus) Succeeded() bool { return b.State == "succeeded" }

// Pipeline is one runnable pipeline definition.
type Pipeline struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is the pipeline platform contract.
type Client interface {
	List(ctx context.Context, project string) ([]Pipeline, error)
	Run(ctx context.Context, pipelineID string, variables map[string]string) (buildID string, err error)
	Status(ctx context.Context, buildID string) (BuildStatus, error)
	Logs(ctx context.Context, buildID string) (string, error)
}

// BuildError is a terminal failed or cancelled build.
type BuildError struct {
	BuildID string
	State   string
	Detail  string
}

func (e *BuildError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("pipeline build %s %s", e.BuildID, e.State)
	}
	return fmt.Sprintf("pipeline build %s %s: %s", e.BuildID, e.State, e.Detail)
}
