// Package classify maps raw platform and probe failures to a closed
// category set with a human-actionable recommendation. Classification is
// pattern matching over the message text and is total: every input yields
// exactly one category, defaulting to Unclassified.
package classify

import (
	"strings"
	"time"

	"stagewatch/internal/rollout"
)

// recommendations is the fixed category -> operator guidance table.
var recommendations = map[rollout.ErrorCategory]string{
	rollout.CategoryQuotaExceeded:       "Reduce redundancy for the affected resource or request a quota increase from the platform team.",
	rollout.CategoryTimeout:             "Check the health of the target service and consider extending the operation timeout.",
	rollout.CategoryAuthorizationFailed: "Verify the credential chain and the caller's RBAC assignments for the target scope.",
	rollout.CategoryConflict:            "Check for a concurrent or duplicate operation against the same resource before retrying.",
	rollout.CategoryInvalidParameter:    "Check the request payload against the platform schema for the reported field.",
	rollout.CategoryResourceNotFound:    "Check the target identifiers; the referenced resource does not exist in this environment.",
}

// patterns maps message substrings to categories. Order matters: the
// first matching group wins, so the more specific signals sit first.
var patterns = []struct {
	category rollout.ErrorCategory
	needles  []string
}{
	{rollout.CategoryQuotaExceeded, []string{"quota", "limit exceeded", "too many requests", "429", "throttl"}},
	{rollout.CategoryAuthorizationFailed, []string{"unauthorized", "forbidden", "401", "403", "permission denied", "access denied", "rbac", "authentication failed", "invalid credential", "token expired"}},
	{rollout.CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{rollout.CategoryConflict, []string{"conflict", "409", "already exists", "already in progress", "concurrent", "locked by"}},
	{rollout.CategoryResourceNotFound, []string{"not found", "404", "no such", "does not exist", "unknown resource"}},
	{rollout.CategoryInvalidParameter, []string{"invalid", "bad request", "400", "validation failed", "malformed", "unsupported value", "schema"}},
}

// Categorize returns the category for a raw failure message.
func Categorize(raw string) rollout.ErrorCategory {
	msg := strings.ToLower(raw)
	for _, group := range patterns {
		for _, needle := range group.needles {
			if strings.Contains(msg, needle) {
				return group.category
			}
		}
	}
	return rollout.CategoryUnclassified
}

// Recommendation returns the operator guidance for a category. The
// Unclassified category carries no specific recommendation.
func Recommendation(category rollout.ErrorCategory) string {
	return recommendations[category]
}

// Classify builds the full classified record for a raw failure. Stage and
// resource are optional context and may be empty.
func Classify(raw, stage, resource string, now time.Time) rollout.ClassifiedError {
	category := Categorize(raw)
	return rollout.ClassifiedError{
		RawMessage:     raw,
		Category:       category,
		Stage:          stage,
		Resource:       resource,
		Recommendation: Recommendation(category),
		Timestamp:      now,
	}
}

// Error classifies a Go error, tolerating nil.
func Error(err error, stage, resource string, now time.Time) rollout.ClassifiedError {
	raw := ""
	if err != nil {
		raw = err.Error()
	}
	return Classify(raw, stage, resource, now)
}
