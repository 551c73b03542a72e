package selector

import (
	"context"
	"sort"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"golang.org/x/sync/errgroup"
)

// DefaultHedgeCount is spec.md §6's HEDGE_COUNT default.
const DefaultHedgeCount = 2

// AttemptLog records one completed race participant, win or lose, for
// the caller to feed into health and telemetry (spec.md §4.4: "every
// completed attempt ... is logged").
type AttemptLog[T any] struct {
	Entry    *Entry
	Response mirror.Response[T]
	Latency  time.Duration
}

// FetchFunc performs one upstream attempt against entry's backend. The
// caller supplies this so the selector package stays ignorant of which
// of the four resource kinds is being fetched.
type FetchFunc[T any] func(ctx context.Context, entry *Entry) mirror.Response[T]

// ValidateFunc reports whether a successful, present response also
// passes the resource's validation rule (spec.md §3's validate_body).
type ValidateFunc[T any] func(mirror.Response[T]) bool

type raceResult[T any] struct {
	entry    *Entry
	response mirror.Response[T]
	latency  time.Duration
}

// HedgeRace implements the Hedged-Race alternate strategy of spec.md
// §4.4. candidates must already be filtered to this resource's
// registry; HedgeRace itself filters to the currently-available ones
// (via Entry.Health.IsAvailable, when Health is set) and orders them
// by ascending latency EMA before racing the first hedgeCount.
//
// It returns the winning entry and response, plus every completed
// attempt (winner and stragglers) for the caller to log. If no
// candidate ultimately succeeds, the returned Response has
// IsSuccess == false.
func HedgeRace[T any](ctx context.Context, candidates []*Entry, hedgeCount int, c clock.Clock, fetch FetchFunc[T], validate ValidateFunc[T]) (*Entry, mirror.Response[T], []AttemptLog[T]) {
	if hedgeCount <= 0 {
		hedgeCount = DefaultHedgeCount
	}

	available := make([]*Entry, 0, len(candidates))
	for _, e := range candidates {
		if e.Health == nil || e.Health.IsAvailable() {
			available = append(available, e)
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		return latencyOf(available[i]) < latencyOf(available[j])
	})

	if len(available) == 0 {
		var zero mirror.Response[T]
		return nil, zero, nil
	}

	k := hedgeCount
	if k > len(available) {
		k = len(available)
	}

	winner, resp, logs := race(ctx, available[:k], c, fetch, validate)
	if winner != nil {
		return winner, resp, logs
	}

	// All k racers failed; spec.md §4.4 falls back to sequential
	// attempts over the remaining mirrors.
	for _, e := range available[k:] {
		start := c.Now()
		r := fetch(ctx, e)
		latency := c.Now().Sub(start)
		logs = append(logs, AttemptLog[T]{Entry: e, Response: r, Latency: latency})
		if r.IsSuccess && r.HasData && validate(r) {
			return e, r, logs
		}
	}

	var zero mirror.Response[T]
	return nil, zero, logs
}

func latencyOf(e *Entry) float64 {
	if e.Health == nil {
		return 0
	}
	return e.Health.LatencyEMA()
}

// race launches one goroutine per entry in group, guarded by an
// errgroup so a panicking racer cannot leak the group's lifecycle. It
// returns as soon as the first matching success arrives, cancelling
// the remaining racers; stragglers already in flight are still logged
// if they complete before cancellation takes effect.
func race[T any](ctx context.Context, group []*Entry, c clock.Clock, fetch FetchFunc[T], validate ValidateFunc[T]) (*Entry, mirror.Response[T], []AttemptLog[T]) {
	raceCtx, cancel := context.WithCancel(ctx)
	results := make(chan raceResult[T], len(group))

	eg, egCtx := errgroup.WithContext(raceCtx)
	for _, e := range group {
		e := e
		eg.Go(func() error {
			start := c.Now()
			resp := fetch(egCtx, e)
			results <- raceResult[T]{entry: e, response: resp, latency: c.Now().Sub(start)}
			return nil
		})
	}
	go func() { _ = eg.Wait(); close(results) }()

	var logs []AttemptLog[T]
	for i := 0; i < len(group); i++ {
		r, ok := <-results
		if !ok {
			break
		}
		logs = append(logs, AttemptLog[T]{Entry: r.entry, Response: r.response, Latency: r.latency})
		if r.response.IsSuccess && r.response.HasData && validate(r.response) {
			cancel()
			go drain(results, len(group)-i-1)
			return r.entry, r.response, logs
		}
	}
	cancel()

	var zero mirror.Response[T]
	return nil, zero, logs
}

// drain absorbs stragglers that were already in flight when a winner
// was chosen, so their goroutines don't block forever on a full
// channel; the channel is already large enough to hold them, but the
// close(results) signal still needs a reader.
func drain[T any](results <-chan raceResult[T], n int) {
	for i := 0; i < n; i++ {
		if _, ok := <-results; !ok {
			return
		}
	}
}
