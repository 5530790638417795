package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache returned ok")
	}

	c.Set("a", "one")
	got, ok := c.Get("a")
	if !ok || got != "one" {
		t.Errorf("Get(a) = %v, %v, want one, true", got, ok)
	}

	c.Set("a", "two")
	got, _ = c.Get("a")
	if got != "two" {
		t.Errorf("Get(a) after overwrite = %v, want two", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	c.Get("k0")
	c.Set("k3", 3)

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have been evicted")
	}
	if _, ok := c.Get("k0"); !ok {
		t.Error("k0 should have survived eviction")
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned from Get")
	}

	removed := c.CleanExpired()
	if removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1 (b; a already removed on read)", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestManager_CleanupAndStop(t *testing.T) {
	c := NewLRUCache[int](10, time.Millisecond)
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)

	deadline := time.After(time.Second)
	for c.Size() > 0 {
		select {
		case <-deadline:
			t.Fatal("cleanup never removed expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}

	m.Stop()
}
