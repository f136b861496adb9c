package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stagewatch/internal/credentials"
	"stagewatch/internal/platform"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient talks JSON over HTTP to the pipeline platform.
type HTTPClient struct {
	BaseURL string
	Creds   credentials.Provider
	Scope   string

	HTTP *http.Client
}

func NewHTTPClient(baseURL string, creds credentials.Provider) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Creds:   creds,
		Scope:   "pipeline-platform",
		HTTP:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *HTTPClient) List(ctx context.Context, project string) ([]Pipeline, error) {
	var resp struct {
		Pipelines []Pipeline `json:"pipelines"`
	}
	path := "/v1/pipelines?project=" + url.QueryEscape(project)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list pipelines for %s: %w", project, err)
	}
	return resp.Pipelines, nil
}

func (c *HTTPClient) Run(ctx context.Context, pipelineID string, variables map[string]string) (string, error) {
	body := map[string]any{"variables": variables}
	var resp struct {
		BuildID string `json:"build_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/pipelines/"+pipelineID+"/runs", body, &resp); err != nil {
		return "", fmt.Errorf("run pipeline %s: %w", pipelineID, err)
	}
	if resp.BuildID == "" {
		return "", fmt.Errorf("run pipeline %s: platform returned no build id", pipelineID)
	}
	return resp.BuildID, nil
}

func (c *HTTPClient) Status(ctx context.Context, buildID string) (BuildStatus, error) {
	var status BuildStatus
	if err := c.do(ctx, http.MethodGet, "/v1/builds/"+buildID, nil, &status); err != nil {
		return BuildStatus{}, fmt.Errorf("build %s status: %w", buildID, err)
	}
	if status.BuildID == "" {
		status.BuildID = buildID
	}
	return status, nil
}

func (c *HTTPClient) Logs(ctx context.Context, buildID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/builds/"+buildID+"/logs", nil)
	if err != nil {
		return "", fmt.Errorf("build %s logs: %w", buildID, err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return "", err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("build %s logs: %w", buildID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &platform.APIError{StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("build %s logs: %w", buildID, err)
	}
	return string(data), nil
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: defaultRequestTimeout}
}

func (c *HTTPClient) authorize(ctx context.Context, req *http.Request) error {
	if c.Creds == nil {
		return nil
	}
	token, err := c.Creds.Token(ctx, c.Scope)
	if err != nil {
		return fmt.Errorf("resolve pipeline token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
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
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &platform.APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
