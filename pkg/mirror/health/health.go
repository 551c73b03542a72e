package health

import (
	"sync"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
)

const (
	latencyEMAAlpha   = 0.3
	latencyEMAInitial = 1.0 // seconds
)

// Config bundles the per-mirror resilience configuration consumed at
// construction time.
type Config struct {
	Circuit CircuitConfig
	// RequestsPerSecond, when greater than zero, attaches a token
	// bucket. BucketSize of zero defaults to 2x the rate.
	RequestsPerSecond float64
	BucketSize        float64
}

// MirrorHealth combines the circuit breaker, optional token bucket and
// latency EMA for a single mirror, guarded by one mutex per spec.md
// §5's discipline table ("Circuit breaker fields" / "Token bucket" /
// "Latency EMA" all share a per-mirror mutex).
type MirrorHealth struct {
	mu sync.Mutex

	breaker     *CircuitBreaker
	bucket      *TokenBucket // nil when no rate limit is configured
	latencyEMA  float64
	emaAlpha    float64
	clock       clock.Clock
}

// New constructs a MirrorHealth in its initial state: circuit closed,
// latency EMA seeded at 1.0s.
func New(config Config, c clock.Clock) *MirrorHealth {
	h := &MirrorHealth{
		breaker:    NewCircuitBreaker(config.Circuit, c),
		latencyEMA: latencyEMAInitial,
		emaAlpha:   latencyEMAAlpha,
		clock:      c,
	}
	if config.RequestsPerSecond > 0 {
		h.bucket = NewTokenBucket(config.RequestsPerSecond, config.BucketSize, c)
	}
	return h
}

// IsAvailable is the conjunction described in spec.md §4.2: the
// breaker is consulted first; only if it admits the request is the
// bucket consulted. If the bucket denies, the breaker's admission is
// not consumed - there was no breaker-side token to "give back" in
// the first place, since ShouldAllowRequest only mutates OPEN->HALF_OPEN
// state, not a budget. The ordering still matters for HALF_OPEN: a
// probe slot should not be wasted servicing a request immediately
// thereafter denied by the rate limiter, so this call first decides
// whether a probe would be attempted at all.
func (h *MirrorHealth) IsAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.breaker.ShouldAllowRequest() {
		return false
	}
	if h.bucket != nil && !h.bucket.TryAcquire(1) {
		return false
	}
	return true
}

// RecordSuccess closes the breaker and folds latency into the EMA.
func (h *MirrorHealth) RecordSuccess(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.breaker.RecordSuccess()
	observed := latency.Seconds()
	h.latencyEMA = h.emaAlpha*observed + (1-h.emaAlpha)*h.latencyEMA
}

// RecordFailure records a breaker failure. The EMA is left untouched,
// to avoid contaminating it with timeout tails.
func (h *MirrorHealth) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.breaker.RecordFailure()
}

// LatencyEMA returns the current latency estimate, in seconds.
func (h *MirrorHealth) LatencyEMA() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latencyEMA
}

// CircuitState exposes the breaker's state for observability/tests.
func (h *MirrorHealth) CircuitState() CircuitState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.breaker.state
}
