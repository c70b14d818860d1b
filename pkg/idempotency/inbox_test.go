package idempotency

import (
	"testing"
	"time"
)

func TestGenerateKeyDeterministic(t *testing.T) {
	ts := time.Date(2026, 8, 31, 12, 30, 45, 0, time.UTC)

	k1 := GenerateKey("p-1", "careplan.requested", ts)
	k2 := GenerateKey("p-1", "careplan.requested", ts.Add(10*time.Second))
	if k1 != k2 {
		t.Error("keys within the same minute should match")
	}

	k3 := GenerateKey("p-1", "careplan.requested", ts.Add(time.Minute))
	if k1 == k3 {
		t.Error("keys in different minutes should differ")
	}

	k4 := GenerateKey("p-2", "careplan.requested", ts)
	if k1 == k4 {
		t.Error("keys for different patients should differ")
	}
}

func TestIsTerminalError(t *testing.T) {
	cases := []struct {
		msg      string
		terminal bool
	}{
		{"json unmarshal failed", true},
		{"validation error: missing name", true},
		{"dial tcp: connection refused", false},
		{"context deadline exceeded", false},
	}
	for _, tc := range cases {
		if got := isTerminalError(errString(tc.msg)); got != tc.terminal {
			t.Errorf("isTerminalError(%q) = %v, want %v", tc.msg, got, tc.terminal)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
