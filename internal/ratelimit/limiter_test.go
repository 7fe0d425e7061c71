package ratelimit

import (
	"testing"
	"time"
)

func TestClientLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	cl := NewClientLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !cl.Allow("1.2.3.4") {
			t.Fatalf("expected request %d within burst to be allowed", i)
		}
	}
	if cl.Allow("1.2.3.4") {
		t.Fatal("expected request beyond burst to be denied")
	}
}

func TestClientLimiterRefillsOverTime(t *testing.T) {
	cl := NewClientLimiter(10, 1)

	if !cl.Allow("5.6.7.8") {
		t.Fatal("expected first request to be allowed")
	}
	if cl.Allow("5.6.7.8") {
		t.Fatal("expected second immediate request to be denied")
	}

	time.Sleep(150 * time.Millisecond)

	if !cl.Allow("5.6.7.8") {
		t.Fatal("expected request to be allowed after refill window")
	}
}

func TestClientLimiterIsolatesClientsByIP(t *testing.T) {
	cl := NewClientLimiter(1, 1)

	if !cl.Allow("10.0.0.1") {
		t.Fatal("expected first client's first request to be allowed")
	}
	if !cl.Allow("10.0.0.2") {
		t.Fatal("expected a different client IP to have its own independent bucket")
	}
	if cl.Allow("10.0.0.1") {
		t.Fatal("expected first client's second immediate request to be denied")
	}
}

func TestClientLimiterDefaultsOnInvalidConfig(t *testing.T) {
	cl := NewClientLimiter(0, 0)
	if cl.perIP != 2.0 {
		t.Fatalf("expected default rate of 2.0, got %v", cl.perIP)
	}
	if cl.burst != 4 {
		t.Fatalf("expected default burst of 4, got %d", cl.burst)
	}
}

func TestClientLimiterEmptyIPAlwaysAllowed(t *testing.T) {
	cl := NewClientLimiter(1, 1)
	if !cl.Allow("") {
		t.Fatal("expected empty client IP to bypass rate limiting")
	}
	if !cl.Allow("") {
		t.Fatal("expected repeated empty client IP requests to bypass rate limiting")
	}
}
