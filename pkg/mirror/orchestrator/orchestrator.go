// Package orchestrator implements the aggregate retry loop of
// spec.md §4.5: for each resource kind it refreshes mirror weights,
// selects a mirror, attempts the fetch, validates and logs the
// outcome, and retries (bounded) on failure.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/metrics"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/selector"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/telemetry"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/util"
	"github.com/google/uuid"
)

// MirrorSet is the per-resource registry the orchestrator selects
// over: the mirrors that support a given resource kind, plus the DWRR
// selector built from them.
type MirrorSet struct {
	Resource mirror.Resource
	Entries  []*selector.Entry
	Selector *selector.DWRR

	// UseHedge switches this resource to the Hedged-Race strategy
	// (spec.md §4.4) instead of DWRR. Most deployments leave this
	// false; it exists for latency-sensitive resources such as
	// background images where racing a couple of mirrors is cheap.
	UseHedge   bool
	HedgeCount int
}

// Orchestrator is the fetch(resource_id) state machine of spec.md
// §4.5, instantiated once per process and shared by every client
// request.
type Orchestrator struct {
	sets       map[mirror.Resource]*MirrorSet
	store      telemetry.Store
	clock      clock.Clock
	logger     util.ErrorLogger
	validation mirror.ValidationConfig
}

// New constructs an Orchestrator over the given per-resource mirror
// sets. Resources absent from sets are simply unsupported by this
// orchestrator instance (every call for them returns an error).
func New(sets []*MirrorSet, store telemetry.Store, c clock.Clock, logger util.ErrorLogger, validation mirror.ValidationConfig) *Orchestrator {
	if logger == nil {
		logger = util.DefaultErrorLogger
	}
	byResource := make(map[mirror.Resource]*MirrorSet, len(sets))
	for _, s := range sets {
		byResource[s.Resource] = s
	}
	return &Orchestrator{
		sets:       byResource,
		store:      store,
		clock:      c,
		logger:     logger,
		validation: validation,
	}
}

// FetchArchive implements the fetch_archive external operation of
// spec.md §6.
func (o *Orchestrator) FetchArchive(ctx context.Context, beatmapsetID uint64, apiKeyID string) ([]byte, bool, error) {
	return run(ctx, o, mirror.ResourceOszFile, apiKeyID, func(ctx context.Context, e *selector.Entry) mirror.Response[[]byte] {
		return e.Backend.FetchArchive(ctx, beatmapsetID)
	}, o.validateArchive)
}

// FetchBackgroundImage implements fetch_background_image.
func (o *Orchestrator) FetchBackgroundImage(ctx context.Context, beatmapID uint64, apiKeyID string) ([]byte, bool, error) {
	return run(ctx, o, mirror.ResourceBackgroundImage, apiKeyID, func(ctx context.Context, e *selector.Entry) mirror.Response[[]byte] {
		return e.Backend.FetchBackgroundImage(ctx, beatmapID)
	}, alwaysValidBytes)
}

// FetchMetadataBeatmap implements fetch_metadata_beatmap.
func (o *Orchestrator) FetchMetadataBeatmap(ctx context.Context, beatmapID uint64, apiKeyID string) (mirror.JSON, bool, error) {
	return run(ctx, o, mirror.ResourceCheesegullBeatmap, apiKeyID, func(ctx context.Context, e *selector.Entry) mirror.Response[mirror.JSON] {
		return e.Backend.FetchMetadataBeatmap(ctx, beatmapID)
	}, alwaysValidJSON)
}

// FetchMetadataBeatmapset implements fetch_metadata_beatmapset.
func (o *Orchestrator) FetchMetadataBeatmapset(ctx context.Context, beatmapsetID uint64, apiKeyID string) (mirror.JSON, bool, error) {
	return run(ctx, o, mirror.ResourceCheesegullBeatmapset, apiKeyID, func(ctx context.Context, e *selector.Entry) mirror.Response[mirror.JSON] {
		return e.Backend.FetchMetadataBeatmapset(ctx, beatmapsetID)
	}, alwaysValidJSON)
}

func (o *Orchestrator) validateArchive(resp mirror.Response[[]byte]) bool {
	return o.validation.ValidateBody(mirror.ResourceOszFile, resp.Data)
}

func alwaysValidBytes(mirror.Response[[]byte]) bool { return true }

func alwaysValidJSON(mirror.Response[mirror.JSON]) bool { return true }

// run is the resource-agnostic body of the state machine in spec.md
// §4.5's diagram, parameterized over the payload type T.
func run[T any](ctx context.Context, o *Orchestrator, resource mirror.Resource, apiKeyID string, fetch selector.FetchFunc[T], validate selector.ValidateFunc[T]) (T, bool, error) {
	var zero T

	set, ok := o.sets[resource]
	if !ok || len(set.Entries) == 0 {
		return zero, false, fmt.Errorf("orchestrator: no mirrors configured for resource %s", resource)
	}

	// [Start] -> refresh_weights, per spec.md §4.5's diagram. Every
	// subsequent [Log+Weight] step (after each persisted attempt)
	// refreshes again - see runDWRR/runHedge.
	if err := set.Selector.RefreshWeights(ctx); err != nil {
		return zero, false, fmt.Errorf("orchestrator: refresh weights for %s: %w", resource, err)
	}

	correlationID := uuid.NewString()

	if set.UseHedge {
		return runHedge(ctx, o, set, apiKeyID, correlationID, fetch, validate)
	}
	return runDWRR(ctx, o, set, apiKeyID, correlationID, fetch, validate)
}

// runDWRR drives the [SelectPhase]/[Attempt]/[Log+Weight] loop of
// spec.md §4.5 using the DWRR selector.
func runDWRR[T any](ctx context.Context, o *Orchestrator, set *MirrorSet, apiKeyID, correlationID string, fetch selector.FetchFunc[T], validate selector.ValidateFunc[T]) (T, bool, error) {
	var zero T
	n := len(set.Entries)
	ceiling := 2 * n
	var prev *selector.Entry
	absentMirrors := make(map[*selector.Entry]struct{}, n)

	for attempts := 0; attempts < ceiling; {
		entry, err := set.Selector.SelectMirror()
		if err != nil {
			// SelectorExhausted: fatal bug signal, surfaced as an error.
			return zero, false, fmt.Errorf("orchestrator: %w", err)
		}

		if entry == prev && n > 1 {
			// prev-mirror guard: re-select without counting this as
			// an attempt or as an iteration of the retry ceiling.
			continue
		}

		if entry.Health != nil && !entry.Health.IsAvailable() {
			// BreakerOpen/RateLimited: skip silently, selector
			// proceeds. Not counted against the retry ceiling since
			// no request was actually made.
			prev = entry
			continue
		}

		started := o.clock.Now()
		resp := fetch(ctx, entry)
		latency := o.clock.Now().Sub(started)

		valid := resp.IsSuccess && resp.HasData && validate(resp)
		o.recordOutcome(ctx, set.Resource, entry, apiKeyID, correlationID, latency, outcomeOf(resp, validate))

		// [Log+Weight] -> persist row; refresh_weights, on both the
		// success and failure branches of spec.md §4.5's diagram - a
		// mirror that just failed must not keep its stale, higher
		// weight for the remainder of this request's retries.
		if err := set.Selector.RefreshWeights(ctx); err != nil {
			return zero, false, fmt.Errorf("orchestrator: refresh weights for %s: %w", set.Resource, err)
		}

		if valid {
			return resp.Data, true, nil
		}

		prev = entry
		attempts++

		if resp.IsSuccess && !resp.HasData {
			// Authoritative absence (404/451) is not a failure and
			// does not penalize the mirror, but it still counts as an
			// attempt against this mirror for this request. Once
			// every distinct mirror has reported absent, there is
			// nothing left to learn by cycling through them again:
			// report "not found" now instead of spinning to the
			// ceiling.
			absentMirrors[entry] = struct{}{}
			if len(absentMirrors) >= n {
				return zero, false, nil
			}
		}
	}

	o.logger.Log(fmt.Errorf("orchestrator: exhausted %d attempts for resource %s", ceiling, set.Resource))
	return zero, false, nil
}

// runHedge drives the Hedged-Race alternate strategy of spec.md §4.4,
// then persists every completed attempt exactly as runDWRR does.
func runHedge[T any](ctx context.Context, o *Orchestrator, set *MirrorSet, apiKeyID, correlationID string, fetch selector.FetchFunc[T], validate selector.ValidateFunc[T]) (T, bool, error) {
	var zero T

	winner, resp, logs := selector.HedgeRace(ctx, set.Entries, set.HedgeCount, o.clock, fetch, validate)
	for _, a := range logs {
		o.recordOutcome(ctx, set.Resource, a.Entry, apiKeyID, correlationID, a.Latency, outcomeOf(a.Response, validate))

		// [Log+Weight] -> persist row; refresh_weights applies per
		// completed attempt here too, even though the race itself
		// orders candidates by latency EMA rather than DWRR weight:
		// a resource can fall back to DWRR on a later call, and the
		// weights it sees must reflect every attempt already logged.
		if err := set.Selector.RefreshWeights(ctx); err != nil {
			return zero, false, fmt.Errorf("orchestrator: refresh weights for %s: %w", set.Resource, err)
		}
	}

	if winner == nil {
		o.logger.Log(fmt.Errorf("orchestrator: hedged race exhausted all mirrors for resource %s", set.Resource))
		return zero, false, nil
	}
	return resp.Data, true, nil
}

// attemptOutcome is the type-erased projection of a mirror.Response
// that recordOutcome needs; it exists because Go methods cannot carry
// their own type parameters, so the generic Response[T] must be
// flattened before crossing into non-generic orchestrator code.
type attemptOutcome struct {
	isSuccess  bool
	hasData    bool
	requestURL string
	statusCode *int
	errMsg     string
	size       int
	metric     metrics.Outcome
}

// outcomeOf flattens resp for recordOutcome. effectiveSuccess folds in
// resource-specific validation: per spec.md §7's ValidationFailed row,
// a response that is successful and present but fails validate() is
// treated as a failure here, even though the backend's own HTTP
// status was 2xx - the mirror served garbage.
func outcomeOf[T any](resp mirror.Response[T], validate selector.ValidateFunc[T]) attemptOutcome {
	size := 0
	switch data := any(resp.Data).(type) {
	case []byte:
		size = len(data)
	case mirror.JSON:
		size = len(data)
	}

	metric := metrics.OutcomeFailure
	effectiveSuccess := resp.IsSuccess
	switch {
	case resp.IsSuccess && !resp.HasData:
		metric = metrics.OutcomeAbsent
	case resp.IsSuccess && resp.HasData && !validate(resp):
		effectiveSuccess = false
		metric = metrics.OutcomeValidationFailed
	case resp.IsSuccess && resp.HasData:
		metric = metrics.OutcomeSuccess
	}

	return attemptOutcome{
		isSuccess:  effectiveSuccess,
		hasData:    resp.HasData,
		requestURL: resp.RequestURL,
		statusCode: resp.StatusCode,
		errMsg:     resp.Error,
		size:       size,
		metric:     metric,
	}
}

// recordOutcome feeds one completed attempt into the mirror's health
// state and persists its telemetry row, per spec.md §4.5's
// "every attempt... produces exactly one persisted record" and §4.6.
//
// Per spec.md §7's UpstreamAbsent rule, a 404/451 (is_success with no
// data) is logged as success and does not penalize the mirror's
// health; everything else that isn't a clean valid success penalizes
// it.
func (o *Orchestrator) recordOutcome(ctx context.Context, resource mirror.Resource, entry *selector.Entry, apiKeyID, correlationID string, latency time.Duration, outcome attemptOutcome) {
	now := o.clock.Now()
	started := now.Add(-latency)
	mirrorName := entry.Backend.Name()

	healthySuccess := outcome.isSuccess
	if entry.Health != nil {
		if healthySuccess {
			entry.Health.RecordSuccess(latency)
		} else {
			entry.Health.RecordFailure()
		}
	}

	metrics.RecordAttempt(mirrorName, resource, outcome.metric, latency)

	if outcome.isSuccess {
		log.Printf("orchestrator: mirror=%s weight=%d resource=%s correlation_id=%s outcome=%s elapsed_ms=%d",
			mirrorName, entry.Weight.Load(), resource, correlationID, outcome.metric, latency.Milliseconds())
	} else {
		o.logger.Log(fmt.Errorf("orchestrator: mirror=%s weight=%d resource=%s correlation_id=%s outcome=%s elapsed_ms=%d error=%q",
			mirrorName, entry.Weight.Load(), resource, correlationID, outcome.metric, latency.Milliseconds(), outcome.errMsg))
	}

	if o.store == nil {
		return
	}
	record := telemetry.Record{
		RequestURL:         outcome.requestURL,
		APIKeyID:           apiKeyID,
		CorrelationID:      correlationID,
		MirrorName:         mirrorName,
		Resource:           resource,
		Success:            outcome.isSuccess,
		StartedAt:          started,
		EndedAt:            now,
		ResponseStatusCode: outcome.statusCode,
		ResponseSize:       outcome.size,
		ResponseError:      outcome.errMsg,
	}
	if err := o.store.Create(ctx, record); err != nil {
		o.logger.Log(fmt.Errorf("orchestrator: failed to persist telemetry row for %s/%s: %w", mirrorName, resource, err))
	}
}
