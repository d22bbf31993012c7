package session

import (
	"testing"
	"time"
)

func TestReconcile(t *testing.T) {
	start := time.Unix(1_000_000, 0)
	tests := []struct {
		name      string
		now       time.Time
		persisted int
		want      int
	}{
		{"wall clock ahead of snapshot", start.Add(150 * time.Second), 120, 150},
		{"snapshot ahead of wall clock", start.Add(90 * time.Second), 120, 120},
		{"equal", start.Add(120 * time.Second), 120, 120},
		{"clock jumped before start", start.Add(-30 * time.Second), 45, 45},
		{"fresh attempt", start.Add(3 * time.Second), 0, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Reconcile(start, tc.now, tc.persisted); got != tc.want {
				t.Fatalf("Reconcile = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReconcile_MonotonicAcrossReloads(t *testing.T) {
	start := time.Unix(2_000_000, 0)
	persisted := 0
	// Simulated reloads with a clock that wobbles backward between them.
	deltas := []time.Duration{40 * time.Second, 25 * time.Second, 70 * time.Second, 60 * time.Second}
	prev := 0
	for i, d := range deltas {
		got := Reconcile(start, start.Add(d), persisted)
		if got < prev {
			t.Fatalf("reload %d: elapsed moved backward %d -> %d", i, prev, got)
		}
		prev = got
		persisted = got // heartbeat persists the reconciled value
	}
}

func TestRemaining(t *testing.T) {
	if got := Remaining(600, 480); got != 120 {
		t.Errorf("Remaining(600, 480) = %d, want 120", got)
	}
	if got := Remaining(600, 600); got != 0 {
		t.Errorf("Remaining(600, 600) = %d, want 0", got)
	}
	if got := Remaining(600, 900); got != 0 {
		t.Errorf("Remaining(600, 900) = %d, want 0 (never negative)", got)
	}
}
