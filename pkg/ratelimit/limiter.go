package ratelimit

import (
	"context"
	"sync"

	"github.com/Mindburn-Labs/spapi-core/pkg/clock"
)

// Store abstracts the bucket admission decision, so the dispatcher can be
// backed either by an in-process map (single instance) or Redis (shared
// across processes) without changing call sites.
type Store interface {
	// Admit attempts to consume one token for the given bucket key,
	// lazily creating the bucket with limit if it does not exist.
	Admit(ctx context.Context, key string, limit EndpointLimit) (admitted bool, retryAfterSeconds float64, err error)
	// CheckAvailable and WaitTime are non-blocking queries used by the
	// dispatcher's fail-fast path and by callers that want to pre-flight
	// a decision without consuming a token.
	CheckAvailable(ctx context.Context, key string, limit EndpointLimit) (bool, error)
	WaitTime(ctx context.Context, key string, limit EndpointLimit) (float64, error)
}

// Limiter resolves the endpoint-specific limit for an operation's path
// template and delegates admission to the configured Store.
type Limiter struct {
	store   Store
	byKey   map[string]EndpointLimit
	def     EndpointLimit
}

// NewLimiter builds a Limiter over store, using limits (falling back to
// def for unmatched keys).
func NewLimiter(store Store, limits []EndpointLimit, def EndpointLimit) *Limiter {
	byKey := make(map[string]EndpointLimit, len(limits))
	for _, l := range limits {
		byKey[l.Key] = l
	}
	return &Limiter{store: store, byKey: byKey, def: def}
}

// Admit gates dispatch of one request against the bucket for
// pathTemplate. On denial, retryAfterSeconds carries the wait until the
// next token would be available.
func (l *Limiter) Admit(ctx context.Context, pathTemplate string) (admitted bool, retryAfterSeconds float64, err error) {
	limit := resolve(l.byKey, l.def, pathTemplate)
	return l.store.Admit(ctx, pathTemplate, limit)
}

// CheckAvailable is the non-blocking equivalent of Admit.
func (l *Limiter) CheckAvailable(ctx context.Context, pathTemplate string) (bool, error) {
	limit := resolve(l.byKey, l.def, pathTemplate)
	return l.store.CheckAvailable(ctx, pathTemplate, limit)
}

// WaitTime reports seconds until pathTemplate's bucket would admit.
func (l *Limiter) WaitTime(ctx context.Context, pathTemplate string) (float64, error) {
	limit := resolve(l.byKey, l.def, pathTemplate)
	return l.store.WaitTime(ctx, pathTemplate, limit)
}

// MemoryStore is the default single-process Store, lazily creating one
// Bucket per key.
type MemoryStore struct {
	clk     clock.Source
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewMemoryStore builds an in-process Store.
func NewMemoryStore(clk clock.Source) *MemoryStore {
	return &MemoryStore{clk: clk, buckets: make(map[string]*Bucket)}
}

func (s *MemoryStore) bucketFor(key string, limit EndpointLimit) *Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		b = NewBucket(s.clk, limit.Capacity, limit.RatePerSec)
		s.buckets[key] = b
	}
	return b
}

func (s *MemoryStore) Admit(_ context.Context, key string, limit EndpointLimit) (bool, float64, error) {
	admitted, retryAfter := s.bucketFor(key, limit).Admit()
	return admitted, retryAfter, nil
}

func (s *MemoryStore) CheckAvailable(_ context.Context, key string, limit EndpointLimit) (bool, error) {
	return s.bucketFor(key, limit).CheckAvailable(), nil
}

func (s *MemoryStore) WaitTime(_ context.Context, key string, limit EndpointLimit) (float64, error) {
	return s.bucketFor(key, limit).WaitTime(), nil
}
