package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(5)
	for i := 0; i < 5; i++ {
		if !l.Allow("client") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("client") {
		t.Error("request over limit should be denied")
	}
}

func TestSeparateKeys(t *testing.T) {
	l := New(1)
	if !l.Allow("a") {
		t.Error("first request for a should pass")
	}
	if !l.Allow("b") {
		t.Error("first request for b should pass")
	}
	if l.Allow("a") {
		t.Error("second request for a should be denied")
	}
}

func TestWindowReset(t *testing.T) {
	now := time.Now()
	l := New(1, WithClock(func() time.Time { return now }))

	if !l.Allow("client") {
		t.Fatal("first request should pass")
	}
	if l.Allow("client") {
		t.Fatal("second request in window should be denied")
	}

	now = now.Add(DefaultWindow + time.Second)
	if !l.Allow("client") {
		t.Error("request after window elapsed should pass")
	}
}

func TestEviction(t *testing.T) {
	now := time.Now()
	l := New(10, WithClock(func() time.Time { return now }))

	for i := 0; i < 100; i++ {
		l.Allow(fmt.Sprintf("client-%d", i))
	}
	if l.Size() != 100 {
		t.Fatalf("expected 100 tracked keys, got %d", l.Size())
	}

	// Advance past the sweep interval; the next Allow triggers eviction of
	// every stale record.
	now = now.Add(sweepEvery + time.Minute)
	l.Allow("fresh")
	if l.Size() != 1 {
		t.Errorf("expected stale records evicted, got %d keys", l.Size())
	}
}
