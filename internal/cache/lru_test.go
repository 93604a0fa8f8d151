package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []int64
	c := NewLRUCache[int64, string](2, 0, WithEvictHook(func(k int64, _ string) {
		evicted = append(evicted, k)
	}))

	c.Set(1, "a")
	c.Set(2, "b")
	if _, ok := c.Get(1); !ok { // 1 becomes most recent
		t.Fatalf("expected hit for 1")
	}
	c.Set(3, "c")

	if _, ok := c.Get(2); ok {
		t.Fatalf("2 should have been evicted")
	}
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Fatalf("1 should survive, got %q %v", v, ok)
	}
	if len(evicted) != 1 || evicted[0] != 2 {
		t.Fatalf("unexpected evictions %v", evicted)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string, int](10, time.Minute, WithClock[string, int](clock.now))

	c.Set("a", 1)
	c.Set("b", 2)
	clock.advance(30 * time.Second)
	c.Set("b", 3) // refreshes b's TTL
	clock.advance(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be expired")
	}
	if v, ok := c.Get("b"); !ok || v != 3 {
		t.Fatalf("b should be live with 3, got %d %v", v, ok)
	}

	clock.advance(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, size %d", c.Size())
	}
}

func TestLRUHasKeepsRecency(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int, int](2, time.Minute, WithClock[int, int](clock.now))

	c.Set(1, 1)
	c.Set(2, 2)
	if !c.Has(1) || c.Has(9) {
		t.Fatalf("Has(1)=%v Has(9)=%v", c.Has(1), c.Has(9))
	}
	c.Set(3, 3) // 1 is still the oldest
	if c.Has(1) {
		t.Fatal("Has promoted 1 past 2")
	}

	clock.advance(2 * time.Minute)
	if c.Has(2) {
		t.Fatal("expired entry reported present")
	}
}

func TestManagerCleanOnce(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int, int](4, time.Second, WithClock[int, int](clock.now))
	c.Set(1, 1)
	c.Set(2, 2)

	m := NewManager(nil)
	m.Register("test", c)
	clock.advance(2 * time.Second)

	if n := m.CleanOnce(); n != 2 {
		t.Fatalf("CleanOnce removed %d, want 2", n)
	}
	m.Stop() // no-op when never started
}
