package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullDocument(t *testing.T) {
	path := writeConfig(t, `
platform:
  base_url: https://rollouts.example.com
  token_scope: rollout-api
pipeline:
  base_url: https://ci.example.com
  pre_stage_id: smoke-tests
  post_stage_id: cache-warmup
  timeout: 10m
notify:
  webhook_url: https://hooks.example.com/deploys
credentials:
  env_var: DEPLOY_TOKEN
stress:
  endpoint: https://payments.example.com/healthz
  requests: 100
  concurrency: 20
  timeout: 5s
  success_threshold: 99
  latency_threshold_ms: 250
  requires_auth: true
state_dir: /var/lib/stagewatch
poll_interval: 45s
on_failed_validation: cancel
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Platform.BaseURL != "https://rollouts.example.com" {
		t.Fatalf("platform base url = %q", cfg.Platform.BaseURL)
	}
	if cfg.Pipeline.PreStageID != "smoke-tests" || cfg.Pipeline.Timeout.Std() != 10*time.Minute {
		t.Fatalf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Stress.Requests != 100 || cfg.Stress.Timeout.Std() != 5*time.Second || !cfg.Stress.RequiresAuth {
		t.Fatalf("stress = %+v", cfg.Stress)
	}
	if cfg.PollInterval.Std() != 45*time.Second {
		t.Fatalf("poll interval = %v", cfg.PollInterval.Std())
	}
	if cfg.OnFailedValidation != "cancel" {
		t.Fatalf("on_failed_validation = %q", cfg.OnFailedValidation)
	}
	if cfg.StateDir != "/var/lib/stagewatch" {
		t.Fatalf("state dir = %q", cfg.StateDir)
	}
	if cfg.AuditLog != filepath.Join("/var/lib/stagewatch", "audit.log") {
		t.Fatalf("audit log default = %q", cfg.AuditLog)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StateDir == "" || cfg.AuditLog == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := writeConfig(t, "poll_interval: soonish\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed duration accepted")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "platform: [not: a map\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestPathRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	want := filepath.Join("/tmp/xdg-test", "stagewatch", "config.yaml")
	if got := Path(); got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
}
