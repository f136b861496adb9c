package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stagewatch/internal/credentials"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient talks JSON over HTTP to the rollout platform.
type HTTPClient struct {
	BaseURL string
	Creds   credentials.Provider
	Scope   string

	// HTTP is a test seam; defaults to a client with a request timeout.
	HTTP *http.Client
}

// NewHTTPClient returns a client for the given base URL. creds may be
// nil for unauthenticated platforms.
func NewHTTPClient(baseURL string, creds credentials.Provider) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Creds:   creds,
		Scope:   "rollout-platform",
		HTTP:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *HTTPClient) Trigger(ctx context.Context, spec RolloutSpec) (string, error) {
	var resp struct {
		RolloutID string `json:"rollout_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/rollouts", spec, &resp); err != nil {
		return "", fmt.Errorf("trigger rollout: %w", err)
	}
	if resp.RolloutID == "" {
		return "", fmt.Errorf("trigger rollout: platform returned no rollout id")
	}
	return resp.RolloutID, nil
}

func (c *HTTPClient) Status(ctx context.Context, rolloutID string) (StatusReport, error) {
	var report StatusReport
	if err := c.do(ctx, http.MethodGet, "/v1/rollouts/"+rolloutID, nil, &report); err != nil {
		return StatusReport{}, fmt.Errorf("rollout %s status: %w", rolloutID, err)
	}
	if report.RolloutID == "" {
		report.RolloutID = rolloutID
	}
	return report, nil
}

func (c *HTTPClient) Cancel(ctx context.Context, rolloutID, reason string) error {
	body := map[string]string{"reason": reason}
	if err := c.do(ctx, http.MethodPost, "/v1/rollouts/"+rolloutID+"/cancel", body, nil); err != nil {
		return fmt.Errorf("cancel rollout %s: %w", rolloutID, err)
	}
	return nil
}

func (c *HTTPClient) ResolveApproval(ctx context.Context, checkpointID string, approve bool) error {
	body := map[string]bool{"approve": approve}
	if err := c.do(ctx, http.MethodPost, "/v1/approvals/"+checkpointID, body, nil); err != nil {
		return fmt.Errorf("resolve approval %s: %w", checkpointID, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Creds != nil {
		token, err := c.Creds.Token(ctx, c.Scope)
		if err != nil {
			return fmt.Errorf("resolve platform token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readErrorMessage pulls a JSON {"error": ...} message if present,
// otherwise a trimmed slice of the raw body.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
