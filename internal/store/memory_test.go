package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryChatRingBound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < chatRingSize+10; i++ {
		_ = m.AppendChat(ctx, ChatMessage{
			ID:        fmt.Sprintf("m%d", i),
			Scope:     "lobby",
			Author:    "alice",
			Text:      "hi",
			CreatedAt: time.Now(),
		})
	}
	got, _ := m.ChatHistory(ctx, "lobby", 0)
	if len(got) != chatRingSize {
		t.Fatalf("ring holds %d, want %d", len(got), chatRingSize)
	}
	if got[0].ID != "m10" {
		t.Fatalf("oldest retained is %s, want m10", got[0].ID)
	}
}

func TestMemoryChatHistoryLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 5; i++ {
		_ = m.AppendChat(ctx, ChatMessage{ID: fmt.Sprintf("m%d", i), Scope: "g1", CreatedAt: time.Now()})
	}
	got, _ := m.ChatHistory(ctx, "g1", 2)
	if len(got) != 2 || got[0].ID != "m3" || got[1].ID != "m4" {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryPurgeChatBefore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	cut := time.Now()
	_ = m.AppendChat(ctx, ChatMessage{ID: "old", Scope: "g1", CreatedAt: cut.Add(-time.Hour)})
	_ = m.AppendChat(ctx, ChatMessage{ID: "new", Scope: "g1", CreatedAt: cut.Add(time.Hour)})
	_ = m.AppendChat(ctx, ChatMessage{ID: "gone", Scope: "g2", CreatedAt: cut.Add(-time.Hour)})

	_ = m.PurgeChatBefore(ctx, cut)

	g1, _ := m.ChatHistory(ctx, "g1", 0)
	if len(g1) != 1 || g1[0].ID != "new" {
		t.Fatalf("g1 after purge: %+v", g1)
	}
	g2, _ := m.ChatHistory(ctx, "g2", 0)
	if len(g2) != 0 {
		t.Fatalf("g2 after purge: %+v", g2)
	}
}

func TestMemorySessionsCopyOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := sess("g1", time.Now())
	_ = m.Save(ctx, s)

	s.Players[0] = "mallory" // caller keeps mutating its copy
	got, err := m.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Players[0] != "alice" {
		t.Fatal("store shares memory with the caller")
	}

	got.Players[0] = "eve"
	again, _ := m.Load(ctx, "g1")
	if again.Players[0] != "alice" {
		t.Fatal("loaded copy shares memory with the store")
	}
}

func TestMemoryDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Save(ctx, sess("g1", time.Now()))
	_ = m.Delete(ctx, "g1")
	_ = m.Delete(ctx, "g1")
	if _, err := m.Load(ctx, "g1"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
