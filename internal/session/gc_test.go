package session

import (
	"context"
	"testing"
	"time"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/game"
)

func TestSweepExpiresWaitingSessions(t *testing.T) {
	s := newService()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	g := mustCreate(t, s, "Room1", "alice")

	if n := s.Sweep(ctx, base.Add(29*time.Minute)); n != 0 {
		t.Fatalf("young session swept: %d", n)
	}
	if n := s.Sweep(ctx, base.Add(31*time.Minute)); n != 1 {
		t.Fatalf("stale waiting session not swept: %d", n)
	}
	if _, err := s.State(ctx, g.ID); KindOf(err) != KindNotFound {
		t.Fatalf("state after sweep: %v", err)
	}
}

func TestSweepExpiresFinishedAfterGrace(t *testing.T) {
	s := newService()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	g := mustCreate(t, s, "Room1", "alice")
	mustJoin(t, s, g.ID, "bob")
	mustMove(t, s, g.ID, "alice", 0)
	mustMove(t, s, g.ID, "bob", 3)
	mustMove(t, s, g.ID, "alice", 1)
	mustMove(t, s, g.ID, "bob", 4)
	mustMove(t, s, g.ID, "alice", 2)

	if n := s.Sweep(ctx, base.Add(9*time.Minute)); n != 0 {
		t.Fatalf("finished session swept inside grace: %d", n)
	}
	if n := s.Sweep(ctx, base.Add(11*time.Minute)); n != 1 {
		t.Fatalf("finished session kept past grace: %d", n)
	}
}

func TestSweepExpiresIdlePlayingSessions(t *testing.T) {
	s := newService()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	g := mustCreate(t, s, "Room1", "alice")
	mustJoin(t, s, g.ID, "bob")

	if n := s.Sweep(ctx, base.Add(59*time.Minute)); n != 0 {
		t.Fatalf("active session swept early: %d", n)
	}
	if n := s.Sweep(ctx, base.Add(61*time.Minute)); n != 1 {
		t.Fatalf("hour-old session not swept: %d", n)
	}
}

func TestSweepDeletesCorruptSessions(t *testing.T) {
	s := newService()
	ctx := context.Background()

	bad := &game.Session{
		ID:        "corrupt1",
		Name:      "bad",
		Players:   []string{"a", "b", "c"},
		Status:    game.StatusPlaying,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.store.Save(ctx, bad); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n := s.Sweep(ctx, time.Now()); n != 1 {
		t.Fatalf("corrupt session not culled: %d", n)
	}
	if _, err := s.State(ctx, "corrupt1"); KindOf(err) != KindNotFound {
		t.Fatalf("corrupt session survived: %v", err)
	}
}

func TestSweepPrunesLapsedRateWindows(t *testing.T) {
	s := newService()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.limiter.SetClock(func() time.Time { return now })

	// One-shot poll callers never disconnect, so only the sweep can
	// reclaim their windows.
	for _, key := range []string{"anon-1", "anon-2", "anon-3"} {
		if err := s.Allow(key); err != nil {
			t.Fatalf("allow %s: %v", key, err)
		}
	}
	if s.limiter.Len() != 3 {
		t.Fatalf("windows %d, want 3", s.limiter.Len())
	}

	now = base.Add(2 * time.Minute)
	s.Sweep(ctx, now)
	if s.limiter.Len() != 0 {
		t.Fatalf("windows after sweep %d, want 0", s.limiter.Len())
	}
}

func TestSweepKeepsHealthySessions(t *testing.T) {
	s := newService()
	ctx := context.Background()
	g := mustCreate(t, s, "Room1", "alice")
	mustJoin(t, s, g.ID, "bob")

	if n := s.Sweep(ctx, time.Now()); n != 0 {
		t.Fatalf("healthy session swept: %d", n)
	}
	if _, err := s.State(ctx, g.ID); err != nil {
		t.Fatalf("state: %v", err)
	}
}
