package ratelimit

import (
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

func allowN(b *TokenBucket, n int) int {
	allowed := 0
	for i := 0; i < n; i++ {
		if b.Allow(1) {
			allowed++
		}
	}
	return allowed
}

func TestTokenBucket_PerSecondFrameBudget(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := NewPerSecond(clk, 50)

	if got := allowN(b, 60); got != 50 {
		t.Fatalf("initial burst allowed %d frames, want 50", got)
	}

	// 20ms at 50/s is exactly one frame.
	clk.Advance(20 * time.Millisecond)
	if got := allowN(b, 3); got != 1 {
		t.Fatalf("after 20ms allowed %d frames, want 1", got)
	}

	// Long idle periods refill only up to the burst.
	clk.Advance(10 * time.Second)
	if got := allowN(b, 100); got != 50 {
		t.Fatalf("after idle allowed %d frames, want 50", got)
	}
}

func TestTokenBucket_MultiTokenCost(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 4, 2)

	if b.Allow(5) {
		t.Fatalf("cost above capacity must never succeed")
	}
	if !b.Allow(3) {
		t.Fatalf("expected 3 of 4 tokens to be available")
	}
	if b.Allow(2) {
		t.Fatalf("only one token should remain")
	}
	clk.Advance(500 * time.Millisecond)
	if !b.Allow(2) {
		t.Fatalf("expected one refilled token plus the remainder")
	}
}

func TestTokenBucket_ClockGoingBackwards(t *testing.T) {
	clk := &fakeClock{now: time.Unix(100, 0)}
	b := NewPerSecond(clk, 2)
	if !b.Allow(2) {
		t.Fatalf("expected initial burst")
	}
	clk.Advance(-time.Minute)
	if b.Allow(1) {
		t.Fatalf("time going backwards must not refill")
	}
	clk.Advance(500 * time.Millisecond)
	if !b.Allow(1) {
		t.Fatalf("expected refill measured from the new reference point")
	}
}

func TestTokenBucket_ZeroRateDenies(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewPerSecond(clk, 0)
	if b.Allow(1) {
		t.Fatalf("zero-capacity bucket allowed a token")
	}
	if !b.Allow(0) {
		t.Fatalf("zero-cost requests always succeed")
	}
}
