// Package resiliency provides a host-level circuit breaker that sits
// below the dispatcher's own retry/backoff logic (pkg/dispatcher), so a
// persistently failing upstream host is short-circuited before a
// request is even attempted rather than retried into the ground.
package resiliency

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// CircuitBreaker implements a simple three-state failure detector:
// CLOSED (requests pass through), OPEN (requests are rejected until
// resetTimeout elapses), HALF_OPEN (requests pass through; the next
// recorded success closes the breaker and the next recorded failure
// re-opens it).
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	failureCount int
	threshold    int
	lastFailure  time.Time
	resetTimeout time.Duration
	state        string
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: timeout,
		state:        "CLOSED",
	}
}

func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == "OPEN" {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = "HALF_OPEN"
			return true
		}
		return false
	}
	return true
}

func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = "CLOSED"
	cb.failureCount = 0
}

func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount++
	cb.lastFailure = time.Now()
	if cb.failureCount >= cb.threshold {
		cb.state = "OPEN"
	}
}

func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// HostTransport wraps an underlying dispatcher.Transport with a
// per-host circuit breaker. It never retries: the dispatcher owns
// retry/backoff decisions (per-request classification and jittered
// backoff); this layer only decides whether a request should be
// attempted at all against a given host.
type HostTransport struct {
	Underlying interface {
		Do(req *http.Request) (*http.Response, error)
	}

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker

	// FailureThreshold and ResetTimeout configure breakers lazily
	// created per host on first use.
	FailureThreshold int
	ResetTimeout     time.Duration
}

func NewHostTransport(underlying interface {
	Do(req *http.Request) (*http.Response, error)
}, failureThreshold int, resetTimeout time.Duration) *HostTransport {
	return &HostTransport{
		Underlying:       underlying,
		breakers:         make(map[string]*CircuitBreaker),
		FailureThreshold: failureThreshold,
		ResetTimeout:     resetTimeout,
	}
}

func (t *HostTransport) breakerFor(host string) *CircuitBreaker {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.breakers[host]
	if !ok {
		b = NewCircuitBreaker(host, t.FailureThreshold, t.ResetTimeout)
		t.breakers[host] = b
	}
	return b
}

func (t *HostTransport) Do(req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	breaker := t.breakerFor(host)
	if !breaker.Allow() {
		return nil, fmt.Errorf("circuit breaker open for host %s", host)
	}

	resp, err := t.Underlying.Do(req)
	if err != nil || (resp != nil && resp.StatusCode >= 500) {
		breaker.Failure()
		return resp, err
	}
	breaker.Success()
	return resp, nil
}
