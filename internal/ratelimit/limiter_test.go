package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestAllowExactCapThenReject(t *testing.T) {
	l := New(time.Minute, 5)
	for i := 0; i < 5; i++ {
		if !l.Allow("c1") {
			t.Fatalf("call %d rejected inside cap", i+1)
		}
	}
	if l.Allow("c1") {
		t.Fatal("call 6 accepted past cap")
	}
}

func TestWindowResets(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	l := New(time.Minute, 2)
	l.SetClock(func() time.Time { return now })

	l.Allow("c1")
	l.Allow("c1")
	if l.Allow("c1") {
		t.Fatal("third call accepted inside window")
	}

	now = base.Add(61 * time.Second)
	if !l.Allow("c1") {
		t.Fatal("call after reset rejected")
	}
	if !l.Allow("c1") {
		t.Fatal("second call of new window rejected")
	}
	if l.Allow("c1") {
		t.Fatal("new window did not enforce cap")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(time.Minute, 1)
	if !l.Allow("a") {
		t.Fatal("first call for a rejected")
	}
	if !l.Allow("b") {
		t.Fatal("first call for b rejected")
	}
	if l.Allow("a") {
		t.Fatal("a's second call accepted")
	}
}

func TestPruneDropsLapsedWindows(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	l := New(time.Minute, 5)
	l.SetClock(func() time.Time { return now })

	// One-shot callers (cookie-less HTTP clients) each leave a window behind.
	for i := 0; i < 1000; i++ {
		l.Allow(fmt.Sprintf("anon-%d", i))
	}
	if l.Len() != 1000 {
		t.Fatalf("windows %d, want 1000", l.Len())
	}

	now = base.Add(24 * time.Hour)
	l.Allow("active")
	if n := l.Prune(); n != 1000 {
		t.Fatalf("pruned %d, want 1000", n)
	}
	if l.Len() != 1 {
		t.Fatalf("windows after prune %d, want only the active one", l.Len())
	}
	if !l.Allow("active") {
		t.Fatal("active caller rejected after prune")
	}
}

func TestForgetDropsState(t *testing.T) {
	l := New(time.Minute, 1)
	l.Allow("c1")
	if l.Allow("c1") {
		t.Fatal("second call accepted")
	}
	l.Forget("c1")
	if !l.Allow("c1") {
		t.Fatal("call after Forget rejected")
	}
	l.Forget("never-seen") // idempotent
}
