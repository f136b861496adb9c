package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stagewatch/internal/credentials"
)

func TestTrigger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/rollouts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("auth header = %q", got)
		}
		var spec RolloutSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			t.Errorf("decode spec: %v", err)
		}
		if spec.ServiceGroupID != "sg-1" {
			t.Errorf("service group = %q", spec.ServiceGroupID)
		}
		json.NewEncoder(w).Encode(map[string]string{"rollout_id": "r-77"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, credentials.Static("tok-1"))
	id, err := c.Trigger(context.Background(), RolloutSpec{ServiceGroupID: "sg-1", Environment: "prod"})
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if id != "r-77" {
		t.Fatalf("rollout id = %q", id)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rollouts/r-77" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(StatusReport{
			Status:              "in_progress",
			Stage:               "stage-2",
			CompletedStages:     []string{"stage-1"},
			PendingStages:       []string{"stage-2"},
			ApprovalCheckpoints: []ApprovalCheckpoint{{ID: "cp-1", Stage: "stage-2"}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	report, err := c.Status(context.Background(), "r-77")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if report.RolloutID != "r-77" {
		t.Fatalf("rollout id not backfilled: %q", report.RolloutID)
	}
	if report.Stage != "stage-2" || len(report.CompletedStages) != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestCancelAndResolveApproval(t *testing.T) {
	var gotCancelReason string
	var gotApprove *bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/rollouts/r-1/cancel":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			gotCancelReason = body["reason"]
		case "/v1/approvals/cp-9":
			var body map[string]bool
			json.NewDecoder(r.Body).Decode(&body)
			v := body["approve"]
			gotApprove = &v
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	if err := c.Cancel(context.Background(), "r-1", "stress threshold breached"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if gotCancelReason != "stress threshold breached" {
		t.Fatalf("cancel reason = %q", gotCancelReason)
	}

	if err := c.ResolveApproval(context.Background(), "cp-9", false); err != nil {
		t.Fatalf("ResolveApproval() error = %v", err)
	}
	if gotApprove == nil || *gotApprove != false {
		t.Fatalf("approve payload = %v", gotApprove)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Status(context.Background(), "r-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "rate limit exceeded" {
		t.Fatalf("message = %q", apiErr.Message)
	}
	if !apiErr.Transient() {
		t.Fatal("429 must be transient")
	}
}

func TestAPIErrorTransient(t *testing.T) {
	cases := []struct {
		code      int
		transient bool
	}{
		{400, false}, {401, false}, {404, false}, {408, true}, {409, false},
		{429, true}, {500, true}, {502, true}, {503, true},
	}
	for _, tc := range cases {
		e := &APIError{StatusCode: tc.code}
		if e.Transient() != tc.transient {
			t.Errorf("APIError(%d).Transient() = %v, want %v", tc.code, e.Transient(), tc.transient)
		}
	}
}
