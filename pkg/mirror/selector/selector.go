// Package selector implements the two mirror-selection strategies of
// spec.md §4.3/§4.4: Dynamic Weighted Round-Robin (the default) and
// the Hedged-Race alternate.
package selector

import (
	"context"

	bbatomic "github.com/catboybest/beatmap-mirror-gateway/pkg/atomic"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/health"
)

// Entry pairs a mirror backend with its health guard and current
// weight. One Entry exists per (mirror, resource) the registry serves;
// Weight is mutated only through RefreshWeights, matching spec.md §3's
// "mutated only through record_success, record_failure, and
// set_weight" (set_weight here is the atomic Store called by refresh).
type Entry struct {
	Backend mirror.Backend
	Health  *health.MirrorHealth
	Weight  bbatomic.Int32
}

// WeightSource resolves a mirror's current weight for a resource. The
// selector depends on this narrow interface rather than the telemetry
// package directly, so the two packages can be tested independently.
type WeightSource interface {
	MirrorWeight(ctx context.Context, mirrorName string, resource mirror.Resource) (int, error)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

func gcdAll(weights []int) int {
	result := weights[0]
	for _, w := range weights[1:] {
		result = gcd(result, w)
	}
	if result < 0 {
		result = -result
	}
	return result
}

func maxInt(values []int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
