// Package telemetry implements the request-outcome store and weight
// derivation of spec.md §4.6: an append-only log of mirror fetch
// attempts, aggregated through a fixed formula into the integer
// weights the selector consumes.
package telemetry

import (
	"context"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
)

// DefaultInitialWeight is handed back for any (mirror, resource) pair
// with no prior successful rows, per spec.md §6's INITIAL_WEIGHT.
const DefaultInitialWeight = 100

// DefaultWindowHours bounds the sliding window mirror_weight
// aggregates over, per spec.md §6's WINDOW_HOURS.
const DefaultWindowHours = 4

// Config controls the per-deployment knobs spec.md §6 lists as
// configuration options: how wide the aggregation window is, and what
// weight a mirror with no window data gets. Both a MemoryStore and a
// PostgresStore are constructed from one.
type Config struct {
	WindowHours   int
	InitialWeight int
}

// DefaultConfig matches spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{WindowHours: DefaultWindowHours, InitialWeight: DefaultInitialWeight}
}

// WithDefaults fills any zero field with DefaultConfig's value. Both
// store constructors apply it, and callers (e.g. gateway.Bootstrap)
// that need the resolved InitialWeight up front can apply it too.
func (c Config) WithDefaults() Config {
	if c.WindowHours <= 0 {
		c.WindowHours = DefaultWindowHours
	}
	if c.InitialWeight <= 0 {
		c.InitialWeight = DefaultInitialWeight
	}
	return c
}

// Record is one row of beatmap_mirror_requests (spec.md §6), plus a
// CorrelationID: a single client fetch() call can retry across several
// mirrors and so produce several rows, and CorrelationID ties them
// back to the same invocation for log/row cross-referencing. It is
// additive to spec.md's schema, not a replacement for any column it
// names.
type Record struct {
	RequestURL         string
	APIKeyID           string // empty means NULL
	CorrelationID      string
	MirrorName         string
	Resource           mirror.Resource
	Success            bool
	StartedAt          time.Time
	EndedAt            time.Time
	ResponseStatusCode *int
	ResponseSize       int
	ResponseError      string // empty means NULL
}

// Store is the telemetry persistence contract: one write primitive and
// one read primitive, per spec.md §4.6.
type Store interface {
	Create(ctx context.Context, record Record) error
	MirrorWeight(ctx context.Context, mirrorName string, resource mirror.Resource) (int, error)
}
