package ratelimiter

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// defaultIdleTTL evicts buckets for clients that have gone quiet.
const defaultIdleTTL = 10 * time.Minute

// KeyedLimiter keeps an independent token bucket per key (client IP).
// Buckets live in a TTL cache so idle clients do not accumulate state;
// every hit refreshes the key's TTL.
//
// Thread safety: safe for concurrent use.
type KeyedLimiter struct {
	rps   uint
	burst uint

	// mu serializes get-or-create so concurrent first requests from
	// the same client share one bucket
	mu      sync.Mutex
	buckets *cache.Cache
}

// NewKeyed creates a keyed limiter. Each new key gets its own bucket
// with the given rate and burst; idleTTL (default 10m) controls how long
// an unused bucket survives.
func NewKeyed(requestsPerSecond, burst uint, idleTTL time.Duration) *KeyedLimiter {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &KeyedLimiter{
		rps:     requestsPerSecond,
		burst:   burst,
		buckets: cache.New(idleTTL, 2*idleTTL),
	}
}

// Allow reports whether a request from key may proceed, consuming a
// token from that key's bucket when it may.
func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	var limiter *RateLimiter
	if v, ok := k.buckets.Get(key); ok {
		limiter = v.(*RateLimiter)
	} else {
		limiter = New(k.rps, k.burst)
	}
	k.buckets.Set(key, limiter, cache.DefaultExpiration)
	k.mu.Unlock()

	return limiter.Allow()
}

// Len returns the number of tracked keys, including ones expired but not
// yet swept. For monitoring and tests.
func (k *KeyedLimiter) Len() int {
	return k.buckets.ItemCount()
}
