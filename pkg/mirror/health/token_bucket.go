package health

import "github.com/catboybest/beatmap-mirror-gateway/pkg/clock"

// TokenBucket is the per-mirror rate limiter of spec.md §3. It is only
// constructed when a mirror's RequestsPerSecond is configured.
type TokenBucket struct {
	clock clock.Clock

	tokensPerSecond float64
	bucketSize      float64

	tokens     float64
	lastUpdate int64 // UnixNano, so the zero value is meaningful on first refill
}

// NewTokenBucket creates a full bucket with the given refill rate. A
// bucketSize of zero defaults to 2x the rate, per spec.md §3.
func NewTokenBucket(tokensPerSecond, bucketSize float64, c clock.Clock) *TokenBucket {
	if bucketSize <= 0 {
		bucketSize = 2 * tokensPerSecond
	}
	return &TokenBucket{
		clock:           c,
		tokensPerSecond: tokensPerSecond,
		bucketSize:      bucketSize,
		tokens:          bucketSize,
		lastUpdate:      c.Now().UnixNano(),
	}
}

func (b *TokenBucket) refill() {
	now := b.clock.Now().UnixNano()
	elapsedSeconds := float64(now-b.lastUpdate) / 1e9
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	if newTokens := b.tokens + elapsedSeconds*b.tokensPerSecond; newTokens < b.bucketSize {
		b.tokens = newTokens
	} else {
		b.tokens = b.bucketSize
	}
	b.lastUpdate = now
}

// TryAcquire atomically refills and attempts to withdraw n tokens,
// returning whether it succeeded.
func (b *TokenBucket) TryAcquire(n float64) bool {
	b.refill()
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// Tokens returns the current token count after refilling, for tests
// and observability. Not part of the admission decision itself.
func (b *TokenBucket) Tokens() float64 {
	b.refill()
	return b.tokens
}
