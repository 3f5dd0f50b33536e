package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStoreAllowsBurstThenDenies(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewStore(1, 2, WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		if dec := store.Allow("acct-1"); !dec.Allowed {
			t.Fatalf("request %d denied", i)
		}
	}
	dec := store.Allow("acct-1")
	if dec.Allowed {
		t.Fatal("expected third request to be denied")
	}
	if dec.RetryAfter <= 0 || dec.RetryAfter > time.Second {
		t.Fatalf("retry after = %v", dec.RetryAfter)
	}

	if dec := store.Allow("acct-2"); !dec.Allowed {
		t.Fatal("expected other key to have its own bucket")
	}

	clock.Advance(time.Second)
	if dec := store.Allow("acct-1"); !dec.Allowed {
		t.Fatal("expected refill after one second")
	}
}

func TestStoreCleanupDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewStore(5, 5, WithClock(clock.Now), WithIdleTTL(time.Minute))

	store.Allow("old")
	clock.Advance(2 * time.Minute)
	store.Allow("fresh")
	store.Cleanup()

	if got := store.Len(); got != 1 {
		t.Fatalf("len = %d, want 1", got)
	}
}

func TestNewStoreClampsBurst(t *testing.T) {
	if got := NewStore(1, 0).Burst(); got != 1 {
		t.Fatalf("burst = %d, want 1", got)
	}
}
