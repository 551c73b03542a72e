package health_test

import (
	"testing"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/health"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerMonotonicity(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Unix(0, 0))
	breaker := health.NewCircuitBreaker(health.CircuitConfig{FailureThreshold: 3, CooldownSeconds: 30}, fakeClock)

	require.True(t, breaker.ShouldAllowRequest())
	breaker.RecordFailure()
	require.True(t, breaker.ShouldAllowRequest())
	breaker.RecordFailure()
	require.True(t, breaker.ShouldAllowRequest())
	breaker.RecordFailure()

	require.Equal(t, health.CircuitOpen, breaker.State())
	require.False(t, breaker.ShouldAllowRequest())

	fakeClock.Advance(29 * time.Second)
	require.False(t, breaker.ShouldAllowRequest())

	fakeClock.Advance(2 * time.Second)
	require.True(t, breaker.ShouldAllowRequest())
	require.Equal(t, health.CircuitHalfOpen, breaker.State())

	// A repeat check while still half-open keeps admitting (there is
	// no "probe already consumed" counter); a failure re-opens, a
	// success closes.
	breaker.RecordFailure()
	require.Equal(t, health.CircuitOpen, breaker.State())
	require.False(t, breaker.ShouldAllowRequest())
}

func TestCircuitBreakerSuccessResetsStreak(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Unix(0, 0))
	breaker := health.NewCircuitBreaker(health.DefaultCircuitConfig(), fakeClock)

	breaker.RecordFailure()
	breaker.RecordFailure()
	require.Equal(t, 2, breaker.ConsecutiveFailures())

	breaker.RecordSuccess()
	require.Equal(t, 0, breaker.ConsecutiveFailures())
	require.Equal(t, health.CircuitClosed, breaker.State())
}
