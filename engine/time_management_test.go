package engine

import (
	"testing"
	"time"
)

func TestAllocateMoveTimeBounds(t *testing.T) {
	cases := []struct {
		name      string
		remaining time.Duration
		inc       time.Duration
		phase     int
	}{
		{"opening no increment", 5 * time.Minute, 0, TotalPhase},
		{"endgame with increment", time.Minute, 2 * time.Second, 2},
		{"panic with increment", 500 * time.Millisecond, time.Second, 10},
		{"almost flagged", 20 * time.Millisecond, 0, 10},
	}
	for _, c := range cases {
		got := AllocateMoveTime(c.remaining, c.inc, c.phase)
		if got <= 0 {
			t.Fatalf("%s: got %v want positive", c.name, got)
		}
		if c.remaining > time.Second && got > c.remaining*7/10 {
			t.Fatalf("%s: got %v, more than 70%% of %v", c.name, got, c.remaining)
		}
	}
}

func TestAllocateMoveTimeUsesIncrement(t *testing.T) {
	without := AllocateMoveTime(time.Minute, 0, TotalPhase)
	with := AllocateMoveTime(time.Minute, 5*time.Second, TotalPhase)
	if with <= without {
		t.Fatalf("increment ignored: %v vs %v", with, without)
	}
}

func TestTimeHandlerLimits(t *testing.T) {
	var th TimeHandler
	th.Start(0)
	if th.TimeStatus() || th.SoftTimeExceeded() {
		t.Fatalf("unbounded handler reported expiry")
	}
	th.Start(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if !th.TimeStatus() || !th.SoftTimeExceeded() {
		t.Fatalf("expired handler not reporting")
	}
}
