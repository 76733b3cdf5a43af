package kv

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreExpiresKeys(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	if err := s.Set(ctx, "mute:7:1", "60", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "forever", "x", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, _ := s.Get(ctx, "mute:7:1"); !ok || v != "60" {
		t.Fatalf("Get before expiry: want=60 got=%q ok=%v", v, ok)
	}

	clock.Advance(59 * time.Second)
	if _, ok, _ := s.Get(ctx, "mute:7:1"); !ok {
		t.Fatalf("Get at 59s: expected key to be present")
	}

	clock.Advance(time.Second)
	if _, ok, _ := s.Get(ctx, "mute:7:1"); ok {
		t.Fatalf("Get at 60s: expected key to be expired")
	}
	if _, ok, _ := s.Get(ctx, "forever"); !ok {
		t.Fatalf("Get forever: key without ttl must not expire")
	}
}

func TestMemoryStoreSweepReclaimsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	_ = s.Set(ctx, "a", "1", time.Second)
	_ = s.Set(ctx, "b", "1", time.Hour)
	clock.Advance(2 * time.Second)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("Sweep: want=1 got=%d", n)
	}
	if _, ok, _ := s.Get(ctx, "b"); !ok {
		t.Fatalf("Sweep removed a live key")
	}
}

func TestMemoryStoreSetsAreIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.SAdd(ctx, "presence:7", "1", "2")
	_ = s.SAdd(ctx, "presence:7", "2")
	got, _ := s.SMembers(ctx, "presence:7")
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("SMembers: want=[1 2] got=%v", got)
	}

	_ = s.SRem(ctx, "presence:7", "2")
	_ = s.SRem(ctx, "presence:7", "2")
	_ = s.SRem(ctx, "presence:7", "missing")
	got, _ = s.SMembers(ctx, "presence:7")
	if len(got) != 1 || got[0] != "1" {
		t.Fatalf("SMembers after SRem: want=[1] got=%v", got)
	}

	_ = s.SRem(ctx, "presence:7", "1")
	got, _ = s.SMembers(ctx, "presence:7")
	if len(got) != 0 {
		t.Fatalf("SMembers after last SRem: want empty got=%v", got)
	}
}
