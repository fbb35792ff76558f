package ratelimiter

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// TestNew verifies rate limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
	}{
		{
			name:              "standard rate",
			requestsPerSecond: 100,
			burst:             200,
		},
		{
			name:              "high rate",
			requestsPerSecond: 10000,
			burst:             20000,
		},
		{
			name:              "low rate",
			requestsPerSecond: 1,
			burst:             2,
		},
		{
			name:              "unlimited (zero rate)",
			requestsPerSecond: 0,
			burst:             0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if limiter == nil {
				t.Fatal("New() returned nil")
			}
			if !limiter.Allow() {
				t.Fatal("fresh limiter should allow the first request")
			}
		})
	}
}

// TestAllow verifies that Allow() correctly enforces rate limits.
func TestAllow(t *testing.T) {
	// Create limiter with 10 req/s, burst of 10
	limiter := New(10, 10)

	// First burst should be allowed (up to burst capacity)
	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}

	// Next request should be rate-limited (bucket empty)
	if limiter.Allow() {
		t.Fatal("request should be rate-limited after burst exhausted")
	}

	// Wait for token replenishment (100ms for 10 req/s = 1 token)
	time.Sleep(110 * time.Millisecond)

	// Should have 1 token available now
	if !limiter.Allow() {
		t.Fatal("request should be allowed after token replenishment")
	}
}

// TestWait verifies that Wait() blocks until a token is available.
func TestWait(t *testing.T) {
	// Create limiter with 10 req/s, burst of 1
	limiter := New(10, 1)

	ctx := context.Background()

	// First request should be immediate (within burst)
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first request should succeed: %v", err)
	}

	// Second request should wait (bucket empty)
	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second request should succeed after waiting: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited approximately 100ms (1/10 second for 10 req/s)
	// Allow some margin for timing jitter
	if elapsed < 50*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Fatalf("wait time %v outside expected range 50ms-200ms", elapsed)
	}
}

// TestWaitContextCancellation verifies that Wait() respects context cancellation.
func TestWaitContextCancellation(t *testing.T) {
	// Create limiter with very low rate to force waiting
	limiter := New(1, 1)

	// Exhaust the burst
	if !limiter.Allow() {
		t.Fatal("first request should be allowed")
	}

	// Create context with short timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Wait should fail with context deadline exceeded
	err := limiter.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() should return error when context is cancelled")
	}
	<-ctx.Done() // Ensure context is actually done
	if ctx.Err() != context.DeadlineExceeded {
		t.Fatalf("context should be DeadlineExceeded, got %v", ctx.Err())
	}
}

// TestUnlimited verifies that a zero rate effectively disables limiting.
func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed with limiting disabled", i)
		}
	}
}

// TestKeyedIndependentBuckets verifies that each key gets its own bucket.
func TestKeyedIndependentBuckets(t *testing.T) {
	keyed := NewKeyed(1, 1, time.Minute)

	if !keyed.Allow("10.0.0.1") {
		t.Fatal("first request for 10.0.0.1 should be allowed")
	}
	if keyed.Allow("10.0.0.1") {
		t.Fatal("second request for 10.0.0.1 should be rate-limited")
	}

	// A different client is unaffected by the first one's exhausted bucket
	if !keyed.Allow("10.0.0.2") {
		t.Fatal("first request for 10.0.0.2 should be allowed")
	}

	if keyed.Len() != 2 {
		t.Fatalf("expected 2 tracked buckets, got %d", keyed.Len())
	}
}

// TestKeyedSharedBucket verifies that repeated requests from the same key
// drain a single bucket.
func TestKeyedSharedBucket(t *testing.T) {
	keyed := NewKeyed(10, 5, time.Minute)

	allowed := 0
	for i := 0; i < 20; i++ {
		if keyed.Allow("192.168.1.1") {
			allowed++
		}
	}

	// Burst of 5, so roughly 5 should pass (tokens may trickle in during the loop)
	if allowed < 5 || allowed > 7 {
		t.Fatalf("expected ~5 requests allowed, got %d", allowed)
	}
	if keyed.Len() != 1 {
		t.Fatalf("expected 1 tracked bucket, got %d", keyed.Len())
	}
}

// TestKeyedIdleExpiry verifies that idle buckets are dropped and a returning
// key starts with a fresh bucket.
func TestKeyedIdleExpiry(t *testing.T) {
	keyed := NewKeyed(1, 1, 50*time.Millisecond)

	if !keyed.Allow("10.0.0.1") {
		t.Fatal("first request should be allowed")
	}
	if keyed.Allow("10.0.0.1") {
		t.Fatal("second request should be rate-limited")
	}

	// Let the bucket expire, then the same key should get a fresh one
	time.Sleep(120 * time.Millisecond)

	if !keyed.Allow("10.0.0.1") {
		t.Fatal("request after idle expiry should be allowed with a fresh bucket")
	}
}

// TestKeyedConcurrent verifies that concurrent access from many keys is safe.
func TestKeyedConcurrent(t *testing.T) {
	keyed := NewKeyed(100, 10, time.Minute)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			key := fmt.Sprintf("10.0.0.%d", n)
			for j := 0; j < 100; j++ {
				keyed.Allow(key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if keyed.Len() != 8 {
		t.Fatalf("expected 8 tracked buckets, got %d", keyed.Len())
	}
}
