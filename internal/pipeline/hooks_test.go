package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedClient serves canned build states in sequence.
type scriptedClient struct {
	runCalls int
	states   []BuildStatus
	idx      int
	logs     string
}

func (c *scriptedClient) List(context.Context, string) ([]Pipeline, error) { return nil, nil }

func (c *scriptedClient) Run(context.Context, string, map[string]string) (string, error) {
	c.runCalls++
	return "b-1", nil
}

func (c *scriptedClient) Status(context.Context, string) (BuildStatus, error) {
	st := c.states[c.idx]
	if c.idx < len(c.states)-1 {
		c.idx++
	}
	return st, nil
}

func (c *scriptedClient) Logs(context.Context, string) (string, error) { return c.logs, nil }

func noWait(context.Context, time.Duration) error { return nil }

func TestRunPreWaitsForSuccess(t *testing.T) {
	client := &scriptedClient{states: []BuildStatus{
		{BuildID: "b-1", State: "queued"},
		{BuildID: "b-1", State: "running"},
		{BuildID: "b-1", State: "succeeded"},
	}}
	h := &Hooks{Client: client, PreStageID: "pl-1", Sleep: noWait}

	if err := h.RunPre(context.Background(), "r-1", "stage-1"); err != nil {
		t.Fatalf("RunPre() error = %v", err)
	}
	if client.runCalls != 1 {
		t.Fatalf("run calls = %d", client.runCalls)
	}
}

func TestRunPreSurfacesBuildFailure(t *testing.T) {
	client := &scriptedClient{
		states: []BuildStatus{{BuildID: "b-1", State: "failed"}},
		logs:   "compilation error in deploy.yaml",
	}
	h := &Hooks{Client: client, PreStageID: "pl-1", Sleep: noWait}

	err := h.RunPre(context.Background(), "r-1", "stage-1")
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v, want *BuildError", err)
	}
	if be.State != "failed" || be.Detail == "" {
		t.Fatalf("build error = %+v", be)
	}
}

func TestRunPostNeverPropagates(t *testing.T) {
	client := &scriptedClient{states: []BuildStatus{{BuildID: "b-1", State: "failed"}}}
	h := &Hooks{Client: client, PostStageID: "pl-2", Sleep: noWait}

	// Must not panic or block; failures are warn-only.
	h.RunPost(context.Background(), "r-1", "stage-1")
	if client.runCalls != 1 {
		t.Fatalf("run calls = %d", client.runCalls)
	}
}

func TestHooksSkipWhenUnconfigured(t *testing.T) {
	var h *Hooks
	if err := h.RunPre(context.Background(), "r-1", "stage-1"); err != nil {
		t.Fatalf("nil hooks RunPre() error = %v", err)
	}

	h = &Hooks{Client: &scriptedClient{}}
	if err := h.RunPre(context.Background(), "r-1", "stage-1"); err != nil {
		t.Fatalf("unconfigured RunPre() error = %v", err)
	}
}
