package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stagewatch/internal/rollout"
)

// Palette — muted, professional, dark-terminal friendly.
var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
)

var (
	AccentStyle  = lipgloss.NewStyle().Foreground(purple)
	SuccessStyle = lipgloss.NewStyle().Foreground(green)
	ErrorStyle   = lipgloss.NewStyle().Foreground(red)
	WarnStyle    = lipgloss.NewStyle().Foreground(yellow)
	MutedStyle   = lipgloss.NewStyle().Foreground(dim)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(dim)
)

func Accent(s string) string { return AccentStyle.Render(s) }
func Bold(s string) string   { return BoldStyle.Render(s) }
func Muted(s string) string  { return MutedStyle.Render(s) }

// Message helpers — single-line strings (no trailing newline).

func SuccessMsg(format string, a ...any) string {
	return SuccessStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func WarnMsg(format string, a ...any) string {
	return WarnStyle.Render("!") + " " + fmt.Sprintf(format, a...)
}

func ErrorMsg(format string, a ...any) string {
	return ErrorStyle.Render("✗") + " " + fmt.Sprintf(format, a...)
}

func InfoMsg(format string, a ...any) string {
	return AccentStyle.Render("●") + " " + fmt.Sprintf(format, a...)
}

// Status renders a rollout status in its signal color.
func Status(s rollout.Status) string {
	switch s {
	case rollout.StatusCompleted:
		return SuccessStyle.Render(s.String())
	case rollout.StatusFailed:
		return ErrorStyle.Render(s.String())
	case rollout.StatusCancelled:
		return WarnStyle.Render(s.String())
	case rollout.StatusInProgress:
		return AccentStyle.Render(s.String())
	default:
		return MutedStyle.Render(s.String())
	}
}

// Verdict renders a stress-test pass/fail.
func Verdict(passed bool) string {
	if passed {
		return SuccessStyle.Render("passed")
	}
	return ErrorStyle.Render("failed")
}

// StressSummary renders one load-generation result as a single line.
func StressSummary(r rollout.StressTestResult) string {
	return fmt.Sprintf("%s  %d requests, %.1f%% success, p50 %.0fms p95 %.0fms p99 %.0fms",
		Verdict(r.Passed), r.TotalRequests, r.SuccessRatePercent, r.P50Ms, r.P95Ms, r.P99Ms)
}

// Pair holds a key-value pair for KeyValues output.
// Fields are unexported; use KV to construct.
type Pair struct {
	key   string
	value string
}

// KV creates a key-value pair.
func KV(key, value string) Pair {
	return Pair{key: key, value: value}
}

// KeyValues renders aligned "key:  value" lines.
// Returns a multi-line string with trailing newline.
func KeyValues(indent string, pairs ...Pair) string {
	maxLen := 0
	for _, p := range pairs {
		if len(p.key) > maxLen {
			maxLen = len(p.key)
		}
	}

	var sb strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", maxLen+1, p.key+":")
		sb.WriteString(indent + LabelStyle.Render(label) + " " + p.value + "\n")
	}
	return sb.String()
}
