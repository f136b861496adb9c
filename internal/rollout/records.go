package rollout

import "time"

// ErrorCategory is the closed classification set for rollout failures.
type ErrorCategory string

const (
	CategoryQuotaExceeded       ErrorCategory = "QuotaExceeded"
	CategoryTimeout             ErrorCategory = "Timeout"
	CategoryAuthorizationFailed ErrorCategory = "AuthorizationFailed"
	CategoryConflict            ErrorCategory = "Conflict"
	CategoryInvalidParameter    ErrorCategory = "InvalidParameter"
	CategoryResourceNotFound    ErrorCategory = "ResourceNotFound"
	CategoryUnclassified        ErrorCategory = "Unclassified"
)

// ClassifiedError is one classified failure, append-only within State.Errors.
type ClassifiedError struct {
	RawMessage     string        `json:"raw_message"`
	Category       ErrorCategory `json:"category"`
	Stage          string        `json:"stage,omitempty"`
	Resource       string        `json:"resource,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// StressTestResult is the immutable record of one load-generation run.
type StressTestResult struct {
	Endpoint           string    `json:"endpoint"`
	Stage              string    `json:"stage,omitempty"`
	TotalRequests      int       `json:"total_requests"`
	SuccessCount       int       `json:"success_count"`
	FailureCount       int       `json:"failure_count"`
	SuccessRatePercent float64   `json:"success_rate_percent"`
	ErrorRatePercent   float64   `json:"error_rate_percent"`
	AverageLatencyMs   float64   `json:"average_latency_ms"`
	P50Ms              float64   `json:"p50_ms"`
	P95Ms              float64   `json:"p95_ms"`
	P99Ms              float64   `json:"p99_ms"`
	DurationMs         int64     `json:"duration_ms"`
	Timestamp          time.Time `json:"timestamp"`
	Passed             bool      `json:"passed"`
}

// EventType identifies one of the notification channel's message kinds.
type EventType string

const (
	EventRolloutStarted   EventType = "RolloutStarted"
	EventStageCompleted   EventType = "StageCompleted"
	EventApprovalRequired EventType = "ApprovalRequired"
	EventStressTestResult EventType = "StressTestResult"
	EventRolloutFailed    EventType = "RolloutFailed"
	EventRolloutCompleted EventType = "RolloutCompleted"
	EventRolloutCancelled EventType = "RolloutCancelled"
)

// NotificationKey builds the dedupe key recorded in State.NotificationsSent.
// Stage- or checkpoint-scoped events qualify the event type so a resumed
// supervisor can tell which occurrence was already delivered.
func NotificationKey(event EventType, qualifier string) string {
	if qualifier == "" {
		return string(event)
	}
	return string(event) + ":" + qualifier
}
