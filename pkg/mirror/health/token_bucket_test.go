package health_test

import (
	"testing"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/health"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLaw(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Unix(0, 0))
	bucket := health.NewTokenBucket(10, 20, fakeClock) // rate=10/s, size=20

	require.Equal(t, 20.0, bucket.Tokens())

	for i := 0; i < 5; i++ {
		require.True(t, bucket.TryAcquire(1))
	}
	require.InDelta(t, 15.0, bucket.Tokens(), 1e-9)

	fakeClock.Advance(1 * time.Second)
	require.InDelta(t, 20.0, bucket.Tokens(), 1e-9) // clamped to bucket size

	for i := 0; i < 25; i++ {
		bucket.TryAcquire(1)
	}
	require.GreaterOrEqual(t, bucket.Tokens(), 0.0)
}

func TestTokenBucketDefaultSize(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Unix(0, 0))
	bucket := health.NewTokenBucket(5, 0, fakeClock)
	require.Equal(t, 10.0, bucket.Tokens()) // 2x rate
}
