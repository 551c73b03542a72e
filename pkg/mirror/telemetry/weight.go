package telemetry

import (
	"math"
	"sort"
)

// deriveWeight implements spec.md §4.6 steps 3-5 given the already
// computed p75 success latency (milliseconds) and failure rate
// (fraction in [0, 1]).
func deriveWeight(p75LatencyMillis, failureRate float64) int {
	latencyWeight := 1000 * math.Exp(-p75LatencyMillis/1000)
	failureWeight := math.Exp(-30 * failureRate)
	weight := int(math.Floor(latencyWeight * failureWeight))
	if weight < 1 {
		weight = 1
	}
	return weight
}

// percentile75 returns the 75th-percentile value over samplesMillis
// using linear interpolation between closest ranks (equivalent to
// Postgres's percentile_cont, and to the PERCENT_RANK query in
// original_source/app/repositories/beatmap_mirror_requests.py for the
// continuous case). spec.md's worked example (S5: {100, 200, 300} ->
// p75 = 250) only agrees with the interpolated definition.
func percentile75(samplesMillis []float64) (float64, bool) {
	if len(samplesMillis) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), samplesMillis...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 1 {
		return sorted[0], true
	}
	rank := 0.75 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if hi >= n {
		hi = n - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), true
}
