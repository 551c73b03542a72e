package selector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/health"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/selector"
	"github.com/stretchr/testify/require"
)

func alwaysValid(mirror.Response[[]byte]) bool { return true }

var errTransport = errors.New("transport error")

// TestHedgeRaceFastestWins is scenario S6: M1 answers slowly, M2
// answers quickly; the caller must receive M2's payload, and M1's
// late result is drained without appearing in the returned logs or
// affecting the outcome.
func TestHedgeRaceFastestWins(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Unix(0, 0))

	m1 := &selector.Entry{Backend: newFakeBackend("m1"), Health: health.New(health.Config{Circuit: health.DefaultCircuitConfig()}, fakeClock)}
	m2 := &selector.Entry{Backend: newFakeBackend("m2"), Health: health.New(health.Config{Circuit: health.DefaultCircuitConfig()}, fakeClock)}

	fetch := func(ctx context.Context, e *selector.Entry) mirror.Response[[]byte] {
		if e.Backend.Name() == "m1" {
			time.Sleep(20 * time.Millisecond)
			return mirror.Success([]byte("slow"), "m1", 200)
		}
		return mirror.Success([]byte("fast"), "m2", 200)
	}

	winner, resp, logs := selector.HedgeRace(context.Background(), []*selector.Entry{m1, m2}, 2, fakeClock, fetch, alwaysValid)

	require.NotNil(t, winner)
	require.Equal(t, "m2", winner.Backend.Name())
	require.True(t, resp.IsSuccess)
	require.Equal(t, []byte("fast"), resp.Data)
	require.Len(t, logs, 1, "only the winner should have completed before the race returned")
}

// TestHedgeRaceFallsBackToSequentialWhenRaceFails covers spec.md §4.4's
// "if all k fail, fall back to sequential attempts over the remaining
// mirrors".
func TestHedgeRaceFallsBackToSequentialWhenRaceFails(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Unix(0, 0))

	h := func() *health.MirrorHealth { return health.New(health.Config{Circuit: health.DefaultCircuitConfig()}, fakeClock) }
	m1 := &selector.Entry{Backend: newFakeBackend("m1"), Health: h()}
	m2 := &selector.Entry{Backend: newFakeBackend("m2"), Health: h()}
	m3 := &selector.Entry{Backend: newFakeBackend("m3"), Health: h()}

	fetch := func(ctx context.Context, e *selector.Entry) mirror.Response[[]byte] {
		if e.Backend.Name() == "m3" {
			return mirror.Success([]byte("ok"), "m3", 200)
		}
		return mirror.Failure[[]byte]("", nil, errTransport)
	}

	winner, resp, logs := selector.HedgeRace(context.Background(), []*selector.Entry{m1, m2, m3}, 2, fakeClock, fetch, alwaysValid)

	require.NotNil(t, winner)
	require.Equal(t, "m3", winner.Backend.Name())
	require.True(t, resp.IsSuccess)
	require.Len(t, logs, 3)
}

// TestHedgeRaceAllMirrorsFail covers the "all mirrors fail -> not
// found" branch.
func TestHedgeRaceAllMirrorsFail(t *testing.T) {
	fakeClock := clock.NewFakeClock(time.Unix(0, 0))
	h := func() *health.MirrorHealth { return health.New(health.Config{Circuit: health.DefaultCircuitConfig()}, fakeClock) }
	m1 := &selector.Entry{Backend: newFakeBackend("m1"), Health: h()}
	m2 := &selector.Entry{Backend: newFakeBackend("m2"), Health: h()}

	fetch := func(ctx context.Context, e *selector.Entry) mirror.Response[[]byte] {
		return mirror.Failure[[]byte]("", nil, errTransport)
	}

	winner, resp, _ := selector.HedgeRace(context.Background(), []*selector.Entry{m1, m2}, 2, fakeClock, fetch, alwaysValid)

	require.Nil(t, winner)
	require.False(t, resp.IsSuccess)
}
