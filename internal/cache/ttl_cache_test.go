package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 42, time.Minute)
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestMissReturnsZeroValue(t *testing.T) {
	c := NewTTLCache[string, string]()

	got, ok := c.Get("missing")
	if ok {
		t.Fatal("expected miss")
	}
	if got != "" {
		t.Fatalf("expected zero value, got %q", got)
	}
}

func TestExpiredEntryIsDropped(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestNonPositiveTTLIsNotStored(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, 0)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry with zero ttl to be dropped")
	}
}

func TestDelete(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected deleted entry to miss")
	}
}

func TestOverwriteRefreshesValue(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	c.Set("a", 2, time.Minute)
	got, _ := c.Get("a")
	if got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
