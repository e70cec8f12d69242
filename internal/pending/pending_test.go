package pending

import (
	"testing"
	"time"
)

func TestSetConsume(t *testing.T) {
	s := NewStore(nil)
	s.Set(1, AwaitingCheckIn)

	action, ok := s.Consume(1)
	if !ok || action != AwaitingCheckIn {
		t.Fatalf("Consume = (%q, %v), want (AwaitingCheckIn, true)", action, ok)
	}
	if _, ok := s.Consume(1); ok {
		t.Error("marker should be cleared after consumption")
	}
}

func TestSetReplaces(t *testing.T) {
	s := NewStore(nil)
	s.Set(1, AwaitingCheckIn)
	s.Set(1, AwaitingCheckOut)

	if action, _ := s.Consume(1); action != AwaitingCheckOut {
		t.Errorf("Consume = %q, want AwaitingCheckOut after replace", action)
	}
}

func TestCancel(t *testing.T) {
	s := NewStore(nil)
	if s.Cancel(1) {
		t.Error("Cancel with no marker should return false")
	}
	s.Set(1, AwaitingCheckOut)
	if !s.Cancel(1) {
		t.Error("Cancel with a marker should return true")
	}
	if _, ok := s.Peek(1); ok {
		t.Error("marker should be gone after cancel")
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := NewStore(clock)

	s.Set(1, AwaitingCheckIn)
	now = now.Add(2 * time.Hour)
	s.Set(2, AwaitingCheckOut)

	s.Prune(time.Hour)

	if _, ok := s.Peek(1); ok {
		t.Error("stale marker should be pruned")
	}
	if _, ok := s.Peek(2); !ok {
		t.Error("fresh marker should survive pruning")
	}
}
