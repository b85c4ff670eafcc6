// Package ratelimit implements the per-endpoint token-bucket admission
// control gating dispatch to the upstream SP-API.
package ratelimit

import (
	"sync"

	"github.com/Mindburn-Labs/spapi-core/pkg/clock"
)

// Bucket is a single endpoint's token bucket. Zero value is not usable;
// construct with NewBucket. Refill and consume are always serialized by
// mu, keeping the critical section O(1) per the concurrency model.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	clk        clock.Source
	lastAt     int64 // unix nanoseconds
}

// NewBucket creates a bucket at full capacity.
func NewBucket(clk clock.Source, capacity float64, refillRate float64) *Bucket {
	b := &Bucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
		clk:        clk,
	}
	b.lastAt = clk.Now().UnixNano()
	return b
}

// Admit attempts to consume 1 token, refilling first. On success returns
// (true, 0). On failure returns (false, retryAfterSeconds) — the wait
// until at least one token is available at the current refill rate.
func (b *Bucket) Admit() (bool, float64) {
	return b.AdmitN(1)
}

// AdmitN attempts to consume cost tokens.
func (b *Bucket) AdmitN(cost float64) (bool, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()

	if b.tokens >= cost {
		b.tokens -= cost
		return true, 0
	}
	deficit := cost - b.tokens
	if b.refillRate <= 0 {
		return false, -1 // never refills; caller should treat as terminal
	}
	return false, deficit / b.refillRate
}

// CheckAvailable reports whether a token would be admitted right now,
// without mutating bucket state. Grounded in the non-blocking query
// operations the reference implementation exposes internally.
func (b *Bucket) CheckAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens >= 1
}

// WaitTime reports the seconds until at least one token would be
// available, without mutating bucket state. Returns 0 if already
// available.
func (b *Bucket) WaitTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.tokens >= 1 {
		return 0
	}
	if b.refillRate <= 0 {
		return -1
	}
	return (1 - b.tokens) / b.refillRate
}

func (b *Bucket) refillLocked() {
	now := b.clk.Now().UnixNano()
	elapsedSeconds := float64(now-b.lastAt) / 1e9
	if elapsedSeconds > 0 {
		b.tokens += elapsedSeconds * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastAt = now
	}
}
