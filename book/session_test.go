package book

import (
	"testing"
	"time"
)

func TestSessionStaysOffUntilNewGame(t *testing.T) {
	s := NewSessions(time.Hour)
	if !s.Active("g1", nil) {
		t.Fatalf("fresh game should be active")
	}
	if !s.Active("g1", []string{"e2e4"}) {
		t.Fatalf("extension should keep the session")
	}
	s.Deactivate("g1")
	if s.Active("g1", []string{"e2e4", "e7e5"}) {
		t.Fatalf("deactivated game came back on an extension")
	}
	if !s.Active("g2", []string{"d2d4"}) {
		t.Fatalf("other games must not be affected")
	}
	if !s.Active("g1", nil) {
		t.Fatalf("new game root should reset the session")
	}
}

func TestSessionResetsOnDivergingHistory(t *testing.T) {
	s := NewSessions(time.Hour)
	s.Active("g", []string{"e2e4", "e7e5"})
	s.Deactivate("g")
	if !s.Active("g", []string{"d2d4"}) {
		t.Fatalf("diverging history should start a new game")
	}
}

func TestSessionEviction(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewSessions(time.Minute)
	s.now = func() time.Time { return now }
	s.Active("a", nil)
	now = now.Add(30 * time.Second)
	s.Active("b", nil)
	now = now.Add(45 * time.Second)
	if n := s.Evict(); n != 1 || s.Len() != 1 {
		t.Fatalf("evicted %d, %d left; want 1 and 1", n, s.Len())
	}
}
