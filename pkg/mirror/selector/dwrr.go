package selector

import (
	"context"
	"fmt"
	"sync"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/metrics"
)

// DWRR is the Dynamic Weighted Round-Robin selector of spec.md §4.3: a
// classical interleaved weighted round-robin over integer weights
// (the current-weight threshold steps down by the weights' gcd once per
// pass), re-weighted periodically from a WeightSource. It is not the
// "smooth" variant: for weights (3, 1) it yields m1, m1, m1, m2.
//
// The cursor state (index, currentWeight) is guarded by a mutex -
// SelectMirror must be mutually exclusive, per spec.md §5's discipline
// table.
type DWRR struct {
	mu sync.Mutex

	resource mirror.Resource
	source   WeightSource
	entries  []*Entry

	index        int
	currentWeight int
	maxWeight     int
	gcdWeight     int
}

// NewDWRR constructs a DWRR selector over entries for resource. Per
// spec.md §3, the selector starts with index = -1, currentWeight = 0.
func NewDWRR(resource mirror.Resource, source WeightSource, entries []*Entry) *DWRR {
	weights := currentWeights(entries)
	return &DWRR{
		resource:      resource,
		source:        source,
		entries:       entries,
		index:         -1,
		currentWeight: 0,
		maxWeight:     maxInt(weights),
		gcdWeight:     gcdAll(weights),
	}
}

func currentWeights(entries []*Entry) []int {
	weights := make([]int, len(entries))
	for i, e := range entries {
		weights[i] = int(e.Weight.Load())
	}
	return weights
}

// NumMirrors returns the number of mirrors this selector cycles over.
func (s *DWRR) NumMirrors() int {
	return len(s.entries)
}

// RefreshWeights re-reads every entry's weight from the WeightSource
// and recomputes max/gcd. The cursor (index, currentWeight) is
// intentionally left as-is across a refresh, per spec.md §4.3: resuming
// the cycle mid-stream is smoother than resetting it.
func (s *DWRR) RefreshWeights(ctx context.Context) error {
	for _, e := range s.entries {
		w, err := s.source.MirrorWeight(ctx, e.Backend.Name(), s.resource)
		if err != nil {
			return fmt.Errorf("refresh weight for %s: %w", e.Backend.Name(), err)
		}
		e.Weight.Store(int32(w))
		metrics.SetWeight(e.Backend.Name(), s.resource, w)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	weights := currentWeights(s.entries)
	s.maxWeight = maxInt(weights)
	s.gcdWeight = gcdAll(weights)
	return nil
}

// SelectMirror runs the weighted-round-robin loop of spec.md §4.3 and
// returns the next Entry to attempt.
func (s *DWRR) SelectMirror() (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if n == 0 {
		return nil, fmt.Errorf("selector: no mirrors configured for resource %s", s.resource)
	}

	gcdWeight := s.gcdWeight
	if gcdWeight <= 0 {
		gcdWeight = 1
	}
	// spec.md §4.3: capped at N * (max_weight / gcd_weight) * 2.
	limit := n * (s.maxWeight / gcdWeight) * 2
	if limit < n*2 {
		limit = n * 2
	}

	for iterations := 0; iterations < limit; iterations++ {
		s.index = (s.index + 1) % n
		if s.index == 0 {
			s.currentWeight -= s.gcdWeight
			if s.currentWeight <= 0 {
				s.currentWeight = s.maxWeight
				if s.currentWeight == 0 {
					return nil, fmt.Errorf("selector: all mirrors have zero weight for resource %s", s.resource)
				}
			}
		}

		if int(s.entries[s.index].Weight.Load()) >= s.currentWeight {
			return s.entries[s.index], nil
		}
	}

	return nil, fmt.Errorf("selector: exhausted %d iterations selecting a mirror for resource %s (bug alarm)", limit, s.resource)
}
