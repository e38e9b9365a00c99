package book

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// Session tracks whether the book is still in play for one game.
type Session struct {
	Active   bool
	history  []string
	lastSeen time.Time
}

// Sessions keeps one Session per game id. Once a game leaves the book it stays out
// until a new game starts under that id.
type Sessions struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]*Session
	now func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, m: make(map[string]*Session), now: time.Now}
}

// Active reports whether the book may be consulted for gameID at history. An empty
// history, or one that does not extend the previous call's history, starts a new game.
func (s *Sessions) Active(gameID string, history []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictLocked(now)

	sess := s.m[gameID]
	if sess == nil || len(history) == 0 || !extends(history, sess.history) {
		sess = &Session{Active: true}
		s.m[gameID] = sess
	}
	sess.history = slices.Clone(history)
	sess.lastSeen = now
	return sess.Active
}

// Deactivate takes gameID out of the book for the rest of the game.
func (s *Sessions) Deactivate(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.m[gameID]; sess != nil {
		sess.Active = false
		sess.lastSeen = s.now()
	}
}

// Len is the number of tracked games.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Evict drops sessions idle for longer than the TTL and returns how many went.
func (s *Sessions) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked(s.now())
}

func (s *Sessions) evictLocked(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	n := 0
	for id, sess := range s.m {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// extends reports whether history starts with prev.
func extends(history, prev []string) bool {
	return len(history) >= len(prev) && slices.Equal(history[:len(prev)], prev)
}
