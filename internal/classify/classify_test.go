package classify

import (
	"errors"
	"testing"
	"time"

	"stagewatch/internal/rollout"
)

func TestCategorize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want rollout.ErrorCategory
	}{
		{"quota", "operation failed: compute quota exceeded in region eu-west", rollout.CategoryQuotaExceeded},
		{"throttle", "request was throttled by the platform", rollout.CategoryQuotaExceeded},
		{"timeout", "deployment timed out waiting for region us-east", rollout.CategoryTimeout},
		{"deadline", "rpc error: context deadline exceeded", rollout.CategoryTimeout},
		{"auth status", "HTTP 403: caller lacks role", rollout.CategoryAuthorizationFailed},
		{"auth text", "permission denied for service group", rollout.CategoryAuthorizationFailed},
		{"conflict", "409 Conflict: rollout already in progress", rollout.CategoryConflict},
		{"not found", "stage map version v12 not found", rollout.CategoryResourceNotFound},
		{"invalid", "validation failed: field replicas must be positive", rollout.CategoryInvalidParameter},
		{"unrecognized", "the moon phase is unfavorable", rollout.CategoryUnclassified},
		{"empty", "", rollout.CategoryUnclassified},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Categorize(tc.raw); got != tc.want {
				t.Fatalf("Categorize(%q) = %s, want %s", tc.raw, got, tc.want)
			}
		})
	}
}

// Every input maps to exactly one category and classification never panics.
func TestClassifyTotality(t *testing.T) {
	inputs := []string{"", " ", "\x00\xff", "quota timeout 403 conflict", "{json:", "very long "}
	for _, raw := range inputs {
		ce := Classify(raw, "", "", time.Now())
		if ce.Category == "" {
			t.Fatalf("Classify(%q) produced empty category", raw)
		}
	}
}

func TestClassifyRecord(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ce := Classify("compute quota exceeded", "stage-2", "vm-pool", now)

	if ce.Category != rollout.CategoryQuotaExceeded {
		t.Fatalf("category = %s", ce.Category)
	}
	if ce.Stage != "stage-2" || ce.Resource != "vm-pool" {
		t.Fatalf("context not carried: %+v", ce)
	}
	if ce.Recommendation == "" {
		t.Fatal("quota category must carry a recommendation")
	}
	if !ce.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v", ce.Timestamp)
	}

	if rec := Recommendation(rollout.CategoryUnclassified); rec != "" {
		t.Fatalf("unclassified recommendation = %q, want empty", rec)
	}
}

func TestClassifyError(t *testing.T) {
	ce := Error(errors.New("target deployment not found"), "", "", time.Now())
	if ce.Category != rollout.CategoryResourceNotFound {
		t.Fatalf("category = %s", ce.Category)
	}

	ce = Error(nil, "", "", time.Now())
	if ce.Category != rollout.CategoryUnclassified {
		t.Fatalf("nil error category = %s", ce.Category)
	}
}
