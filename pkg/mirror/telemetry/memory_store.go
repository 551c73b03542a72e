package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/clock"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
)

// MemoryStore is an in-process Store, grounded on the same
// append-only/windowed-aggregate contract as PostgresStore. It backs
// the orchestrator's tests and a single-process deployment that has no
// external database.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	config  Config
	records []Record
}

// NewMemoryStore constructs an empty MemoryStore. Zero fields of cfg
// fall back to DefaultConfig's values.
func NewMemoryStore(c clock.Clock, cfg Config) *MemoryStore {
	return &MemoryStore{clock: c, config: cfg.WithDefaults()}
}

// Create appends record. MemoryStore never errors.
func (s *MemoryStore) Create(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// MirrorWeight implements spec.md §4.6 over the in-memory window.
func (s *MemoryStore) MirrorWeight(ctx context.Context, mirrorName string, resource mirror.Resource) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-time.Duration(s.config.WindowHours) * time.Hour)

	var successLatenciesMillis []float64
	var total, failed int
	for _, r := range s.records {
		if r.MirrorName != mirrorName || r.Resource != resource || r.StartedAt.Before(cutoff) {
			continue
		}
		total++
		if r.Success {
			successLatenciesMillis = append(successLatenciesMillis, float64(r.EndedAt.Sub(r.StartedAt).Milliseconds()))
		} else {
			failed++
		}
	}

	p75, ok := percentile75(successLatenciesMillis)
	if !ok {
		return s.config.InitialWeight, nil
	}
	if total == 0 {
		return s.config.InitialWeight, nil
	}

	failureRate := float64(failed) / float64(total)
	return deriveWeight(p75, failureRate), nil
}
