// Package pending tracks which attendance flow a user's next location
// submission belongs to. A marker is set when the user starts a check-in or
// check-out, consumed by the first location that arrives, and cleared by an
// explicit cancel or by starting another flow.
package pending

import (
	"sync"
	"time"
)

// Action is the flow awaiting a location from the user.
type Action string

const (
	AwaitingCheckIn  Action = "awaiting_check_in"
	AwaitingCheckOut Action = "awaiting_check_out"
)

type marker struct {
	action Action
	setAt  time.Time
}

// Store is a process-wide map of per-user pending markers. Safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	markers map[int64]marker
}

// NewStore builds a store using the given clock.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now, markers: make(map[int64]marker)}
}

// Set records the user's pending action, replacing any existing marker.
func (s *Store) Set(userID int64, action Action) {
	s.mu.Lock()
	s.markers[userID] = marker{action: action, setAt: s.now()}
	s.mu.Unlock()
}

// Consume returns the user's pending action and clears it. The second return
// is false when no marker is set.
func (s *Store) Consume(userID int64) (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[userID]
	if !ok {
		return "", false
	}
	delete(s.markers, userID)
	return m.action, true
}

// Peek returns the pending action without clearing it.
func (s *Store) Peek(userID int64) (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markers[userID]
	return m.action, ok
}

// Cancel clears the user's marker. Returns false when nothing was pending.
func (s *Store) Cancel(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[userID]; !ok {
		return false
	}
	delete(s.markers, userID)
	return true
}

// Prune drops markers older than maxAge so abandoned flows do not accumulate.
func (s *Store) Prune(maxAge time.Duration) {
	cutoff := s.now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.markers {
		if m.setAt.Before(cutoff) {
			delete(s.markers, id)
		}
	}
}
