package mcp

import (
	"testing"
	"time"
)

func TestBackoffDelayGrowth(t *testing.T) {
	noJitter := func() float64 { return 0 }

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		got := backoffDelay(tt.attempt, backoffBase, backoffMax, noJitter)
		if got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayStrictlyIncreasing(t *testing.T) {
	// Even with maximal jitter on the earlier attempt, the next attempt's
	// minimal delay is larger below the cap: 1.5 * 2^n < 2^(n+1).
	maxJitter := func() float64 { return 0.999 }
	noJitter := func() float64 { return 0 }

	for attempt := 0; attempt < 4; attempt++ {
		early := backoffDelay(attempt, backoffBase, backoffMax, maxJitter)
		late := backoffDelay(attempt+1, backoffBase, backoffMax, noJitter)
		if late <= early {
			t.Errorf("delay(%d)=%v not greater than delay(%d)=%v", attempt+1, late, attempt, early)
		}
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	half := func() float64 { return 0.5 }

	got := backoffDelay(2, backoffBase, backoffMax, half)
	want := 4*time.Second + 1*time.Second // base delay 4s + 0.5*0.5*4s
	if got != want {
		t.Errorf("backoffDelay(2, jitter=0.5) = %v, want %v", got, want)
	}

	full := func() float64 { return 1 }
	got = backoffDelay(0, backoffBase, backoffMax, full)
	if got != 1500*time.Millisecond {
		t.Errorf("backoffDelay(0, jitter=1) = %v, want 1.5s", got)
	}
}
