// Package health implements the per-mirror resilience primitives of
// spec.md §4.2: a circuit breaker, a token-bucket rate limiter, and a
// latency EMA, combined into a single MirrorHealth guard consulted
// before every attempt.
package health

import (
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	// CircuitClosed is normal operation; requests are admitted.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks requests until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen admits requests after the cooldown until the next
	// recorded outcome: a success closes the circuit, a failure re-opens
	// it. The number of requests admitted while half-open is not
	// limited to one.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitConfig configures a CircuitBreaker.
type CircuitConfig struct {
	// FailureThreshold is the number of consecutive failures that
	// opens the circuit. Defaults to 3.
	FailureThreshold int
	// CooldownSeconds is how long the circuit stays open before
	// admitting a half-open probe. Defaults to 30.
	CooldownSeconds float64
}

// DefaultCircuitConfig matches spec.md §3's defaults.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{FailureThreshold: 3, CooldownSeconds: 30}
}

func (c CircuitConfig) withDefaults() CircuitConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.CooldownSeconds <= 0 {
		c.CooldownSeconds = 30
	}
	return c
}

// CircuitBreaker is the per-mirror breaker described by spec.md §3.
// It is not safe for concurrent use on its own; MirrorHealth guards it
// with a mutex, per spec.md §5's discipline table.
type CircuitBreaker struct {
	config CircuitConfig
	clock  clock.Clock

	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
}

// NewCircuitBreaker constructs a breaker in the CLOSED state.
func NewCircuitBreaker(config CircuitConfig, c clock.Clock) *CircuitBreaker {
	return &CircuitBreaker{
		config: config.withDefaults(),
		clock:  c,
		state:  CircuitClosed,
	}
}

// State returns the breaker's current state, without mutating it. It
// does not perform the OPEN->HALF_OPEN cooldown transition; that only
// happens as a side effect of ShouldAllowRequest, matching spec.md §3's
// "the next admission check moves the breaker to HALF_OPEN".
func (b *CircuitBreaker) State() CircuitState { return b.state }

// ConsecutiveFailures returns the current failure streak.
func (b *CircuitBreaker) ConsecutiveFailures() int { return b.consecutiveFailures }

// ShouldAllowRequest reports whether a request may be attempted,
// performing the OPEN -> HALF_OPEN cooldown transition if applicable.
func (b *CircuitBreaker) ShouldAllowRequest() bool {
	switch b.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if b.openedAt.IsZero() {
			return true
		}
		elapsed := b.clock.Now().Sub(b.openedAt).Seconds()
		if elapsed >= b.config.CooldownSeconds {
			b.state = CircuitHalfOpen
			return true
		}
		return false
	default: // CircuitHalfOpen
		return true
	}
}

// RecordSuccess closes the circuit and resets the failure streak.
func (b *CircuitBreaker) RecordSuccess() {
	b.consecutiveFailures = 0
	b.state = CircuitClosed
	b.openedAt = time.Time{}
}

// RecordFailure increments the failure streak, opening the circuit
// (with a fresh opened-at timestamp) once the threshold is reached.
// A failure observed while HALF_OPEN re-opens the circuit immediately,
// regardless of the streak length, since the probe itself failed.
func (b *CircuitBreaker) RecordFailure() {
	wasHalfOpen := b.state == CircuitHalfOpen
	b.consecutiveFailures++
	if wasHalfOpen || b.consecutiveFailures >= b.config.FailureThreshold {
		b.state = CircuitOpen
		b.openedAt = b.clock.Now()
	}
}
