package clockcheck

import (
	"errors"
	"testing"
	"time"
)

func TestCheckClassifiesOffset(t *testing.T) {
	cases := []struct {
		name    string
		offset  time.Duration
		healthy bool
	}{
		{"small positive", 100 * time.Millisecond, true},
		{"small negative", -100 * time.Millisecond, true},
		{"at threshold", 500 * time.Millisecond, false},
		{"large drift", 3 * time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			c.QueryFunc = func() (time.Duration, error) { return tc.offset, nil }

			st := c.Check()
			if st.Healthy != tc.healthy {
				t.Fatalf("offset %v: healthy = %v, want %v", tc.offset, st.Healthy, tc.healthy)
			}
			if st.Offset != tc.offset {
				t.Fatalf("offset = %v", st.Offset)
			}
			if st.CheckedAt.IsZero() {
				t.Fatal("CheckedAt not set")
			}
		})
	}
}

func TestCheckQueryFailure(t *testing.T) {
	c := New()
	c.QueryFunc = func() (time.Duration, error) { return 0, errors.New("pool unreachable") }

	st := c.Check()
	if st.Healthy {
		t.Fatal("failed query reported healthy")
	}
	if st.Error != "pool unreachable" {
		t.Fatalf("error = %q", st.Error)
	}
}
