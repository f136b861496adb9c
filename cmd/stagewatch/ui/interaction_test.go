package ui

import (
	"errors"
	"testing"
)

func TestEnvTruthyValues(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "one", value: "1", want: true},
		{name: "true", value: "true", want: true},
		{name: "yes", value: "yes", want: true},
		{name: "on", value: "on", want: true},
		{name: "zero", value: "0", want: false},
		{name: "false", value: "false", want: false},
		{name: "empty", value: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STAGEWATCH_TEST_TRUTHY", tc.value)
			if got := envTruthy("STAGEWATCH_TEST_TRUTHY"); got != tc.want {
				t.Fatalf("envTruthy() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectInteractiveModeOverrides(t *testing.T) {
	if detectInteractiveMode(true) {
		t.Fatal("explicit no-interaction flag ignored")
	}

	t.Setenv("CI", "true")
	if detectInteractiveMode(false) {
		t.Fatal("CI environment treated as interactive")
	}
}

func TestRequireInteractionHint(t *testing.T) {
	ConfigureInteraction(true)
	t.Cleanup(func() { ConfigureInteraction(false) })

	err := RequireInteraction("use --on-failure to decide up front")
	var noi *ErrNoInteraction
	if !errors.As(err, &noi) {
		t.Fatalf("error = %v, want ErrNoInteraction", err)
	}
	if noi.Hint == "" {
		t.Fatal("hint dropped")
	}
}
