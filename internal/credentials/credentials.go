// Package credentials resolves bearer tokens through an opaque provider
// chain: a static value, an environment variable, a token file, or an
// external command, in that order. The follower never implements token
// acquisition itself; it only invokes whichever source is configured.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Provider yields a bearer token for a scope.
type Provider interface {
	Token(ctx context.Context, scope string) (string, error)
}

// ErrNoToken reports that no configured source produced a token.
var ErrNoToken = errors.New("no credential source produced a token")

// Chain tries each configured source in order and returns the first
// non-empty token.
type Chain struct {
	// Static is a literal token, used as-is when set.
	Static string
	// EnvVar names an environment variable holding the token.
	EnvVar string
	// File points at a file whose trimmed contents are the token.
	File string
	// Command is run via the shell; its trimmed stdout is the token.
	// The requested scope is exposed as $STAGEWATCH_TOKEN_SCOPE.
	Command string
}

func (c *Chain) Token(ctx context.Context, scope string) (string, error) {
	if c.Static != "" {
		return c.Static, nil
	}

	if c.EnvVar != "" {
		if v := strings.TrimSpace(os.Getenv(c.EnvVar)); v != "" {
			return v, nil
		}
	}

	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
	}

	if c.Command != "" {
		cmd := exec.CommandContext(ctx, "sh", "-c", c.Command)
		cmd.Env = append(os.Environ(), "STAGEWATCH_TOKEN_SCOPE="+scope)
		out, err := cmd.Output()
		if err != nil {
			return "", fmt.Errorf("token command: %w", err)
		}
		if v := strings.TrimSpace(string(out)); v != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("token for scope %q: %w", scope, ErrNoToken)
}

// Static returns a provider that always yields the given token, or nil
// when the token is empty. Nil providers mean unauthenticated probing.
func Static(token string) Provider {
	if token == "" {
		return nil
	}
	return &Chain{Static: token}
}
