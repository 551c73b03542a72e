package telemetry_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/telemetry"
	"github.com/stretchr/testify/require"
)

func TestMirrorWeightInitialWeightWhenEmpty(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Unix(0, 0))
	store := telemetry.NewMemoryStore(fakeClock, telemetry.DefaultConfig())

	weight, err := store.MirrorWeight(context.Background(), "mino", mirror.ResourceOszFile)
	require.NoError(t, err)
	require.Equal(t, telemetry.DefaultInitialWeight, weight)
}

// TestMirrorWeightRoundTrip is testable property 7 / scenario S5:
// three successful rows at 100ms, 200ms, 300ms and zero failures must
// yield max(1, floor(1000*exp(-250/1000))) = 778.
func TestMirrorWeightRoundTrip(t *testing.T) {
	now := time.Unix(1000, 0)
	fakeClock := clock.NewFakeClock(now)
	store := telemetry.NewMemoryStore(fakeClock, telemetry.DefaultConfig())

	for _, latency := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond} {
		require.NoError(t, store.Create(context.Background(), telemetry.Record{
			MirrorName: "mino",
			Resource:   mirror.ResourceOszFile,
			Success:    true,
			StartedAt:  now,
			EndedAt:    now.Add(latency),
		}))
	}

	weight, err := store.MirrorWeight(context.Background(), "mino", mirror.ResourceOszFile)
	require.NoError(t, err)
	require.Equal(t, 778, weight)
}

func TestMirrorWeightPenalizesFailures(t *testing.T) {
	now := time.Unix(1000, 0)
	fakeClock := clock.NewFakeClock(now)
	store := telemetry.NewMemoryStore(fakeClock, telemetry.DefaultConfig())

	require.NoError(t, store.Create(context.Background(), telemetry.Record{
		MirrorName: "mino", Resource: mirror.ResourceOszFile, Success: true,
		StartedAt: now, EndedAt: now.Add(50 * time.Millisecond),
	}))
	require.NoError(t, store.Create(context.Background(), telemetry.Record{
		MirrorName: "mino", Resource: mirror.ResourceOszFile, Success: false,
		StartedAt: now, EndedAt: now.Add(50 * time.Millisecond),
	}))

	withoutFailure := int(math.Floor(1000 * math.Exp(-50.0/1000)))
	weight, err := store.MirrorWeight(context.Background(), "mino", mirror.ResourceOszFile)
	require.NoError(t, err)
	require.Less(t, weight, withoutFailure)
}

func TestMirrorWeightIgnoresOtherMirrorsAndResources(t *testing.T) {
	now := time.Unix(1000, 0)
	fakeClock := clock.NewFakeClock(now)
	store := telemetry.NewMemoryStore(fakeClock, telemetry.DefaultConfig())

	require.NoError(t, store.Create(context.Background(), telemetry.Record{
		MirrorName: "other", Resource: mirror.ResourceOszFile, Success: false,
		StartedAt: now, EndedAt: now.Add(5 * time.Second),
	}))
	require.NoError(t, store.Create(context.Background(), telemetry.Record{
		MirrorName: "mino", Resource: mirror.ResourceBackgroundImage, Success: false,
		StartedAt: now, EndedAt: now.Add(5 * time.Second),
	}))

	weight, err := store.MirrorWeight(context.Background(), "mino", mirror.ResourceOszFile)
	require.NoError(t, err)
	require.Equal(t, telemetry.DefaultInitialWeight, weight)
}

func TestMirrorWeightExcludesRowsOutsideWindow(t *testing.T) {
	now := time.Unix(100000, 0)
	fakeClock := clock.NewFakeClock(now)
	store := telemetry.NewMemoryStore(fakeClock, telemetry.DefaultConfig())

	stale := now.Add(-5 * time.Hour)
	require.NoError(t, store.Create(context.Background(), telemetry.Record{
		MirrorName: "mino", Resource: mirror.ResourceOszFile, Success: true,
		StartedAt: stale, EndedAt: stale.Add(100 * time.Millisecond),
	}))

	weight, err := store.MirrorWeight(context.Background(), "mino", mirror.ResourceOszFile)
	require.NoError(t, err)
	require.Equal(t, telemetry.DefaultInitialWeight, weight, "rows older than WINDOW_HOURS must not contribute")
}
