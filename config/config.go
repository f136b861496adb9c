// Package config loads the follower's on-disk configuration.
//
// Config is stored at $XDG_CONFIG_HOME/stagewatch/config.yaml (defaults
// to ~/.config/stagewatch/config.yaml). Everything has a sensible zero
// default; only the platform base URL is required to do useful work.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Platform locates the rollout platform API.
type Platform struct {
	BaseURL    string `yaml:"base_url"`
	TokenScope string `yaml:"token_scope,omitempty"`
}

// Pipeline configures the optional pre/post-stage pipeline hooks.
type Pipeline struct {
	BaseURL     string   `yaml:"base_url,omitempty"`
	Project     string   `yaml:"project,omitempty"`
	PreStageID  string   `yaml:"pre_stage_id,omitempty"`
	PostStageID string   `yaml:"post_stage_id,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
}

// Notify configures the notification channel.
type Notify struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// Credentials configures the token source chain, tried in field order.
type Credentials struct {
	Token   string `yaml:"token,omitempty"`
	EnvVar  string `yaml:"env_var,omitempty"`
	File    string `yaml:"file,omitempty"`
	Command string `yaml:"command,omitempty"`
}

// Stress configures post-stage load validation. A missing endpoint
// disables the gate entirely.
type Stress struct {
	Endpoint           string   `yaml:"endpoint,omitempty"`
	Method             string   `yaml:"method,omitempty"`
	Requests           int      `yaml:"requests,omitempty"`
	Concurrency        int      `yaml:"concurrency,omitempty"`
	Timeout            Duration `yaml:"timeout,omitempty"`
	ExpectedStatuses   []int    `yaml:"expected_statuses,omitempty"`
	SuccessThreshold   float64  `yaml:"success_threshold,omitempty"`
	LatencyThresholdMs float64  `yaml:"latency_threshold_ms,omitempty"`
	RequiresAuth       bool     `yaml:"requires_auth,omitempty"`
	TokenScope         string   `yaml:"token_scope,omitempty"`
}

// Config is the full on-disk document.
type Config struct {
	Platform    Platform    `yaml:"platform"`
	Pipeline    Pipeline    `yaml:"pipeline,omitempty"`
	Notify      Notify      `yaml:"notify,omitempty"`
	Credentials Credentials `yaml:"credentials,omitempty"`
	Stress      Stress      `yaml:"stress,omitempty"`

	StateDir string `yaml:"state_dir,omitempty"`
	AuditLog string `yaml:"audit_log,omitempty"`

	PollInterval Duration `yaml:"poll_interval,omitempty"`

	// ClockCheck verifies local clock health against NTP before
	// supervision starts; drift only warns, it never blocks.
	ClockCheck bool `yaml:"clock_check,omitempty"`

	// OnFailedValidation is halt, cancel, or continue; applies when no
	// operator is attached. Default halt.
	OnFailedValidation string `yaml:"on_failed_validation,omitempty"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/stagewatch/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "stagewatch", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "stagewatch", "config.yaml")
}

// Load reads the config file at path; an empty path means Path(). A
// missing file yields the defaults (not an error).
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StateDir == "" {
		c.StateDir = defaultStateDir()
	}
	if c.AuditLog == "" {
		c.AuditLog = filepath.Join(c.StateDir, "audit.log")
	}
}

// defaultStateDir respects XDG_STATE_HOME, falling back to
// ~/.local/state/stagewatch.
func defaultStateDir() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "state", "stagewatch")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "stagewatch")
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
