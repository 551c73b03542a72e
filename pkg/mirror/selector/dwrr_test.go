package selector_test

import (
	"context"
	"testing"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror/selector"
	"github.com/stretchr/testify/require"
)

type staticWeightSource struct {
	weights map[string]int
}

func (s staticWeightSource) MirrorWeight(ctx context.Context, mirrorName string, resource mirror.Resource) (int, error) {
	return s.weights[mirrorName], nil
}

func newEntry(t *testing.T, name string, weight int32) *selector.Entry {
	t.Helper()
	e := &selector.Entry{Backend: newFakeBackend(name)}
	e.Weight.Store(weight)
	return e
}

func TestDWRRFairnessOverOneCycle(t *testing.T) {
	m1 := newEntry(t, "m1", 3)
	m2 := newEntry(t, "m2", 1)
	sel := selector.NewDWRR(mirror.ResourceOszFile, staticWeightSource{}, []*selector.Entry{m1, m2})

	counts := map[string]int{}
	for i := 0; i < 8; i++ {
		e, err := sel.SelectMirror()
		require.NoError(t, err)
		counts[e.Backend.Name()]++
	}

	require.Equal(t, 6, counts["m1"])
	require.Equal(t, 2, counts["m2"])
}

func TestDWRRSequenceOrderForUnevenWeights(t *testing.T) {
	m1 := newEntry(t, "m1", 3)
	m2 := newEntry(t, "m2", 1)
	sel := selector.NewDWRR(mirror.ResourceOszFile, staticWeightSource{}, []*selector.Entry{m1, m2})

	var sequence []string
	for i := 0; i < 4; i++ {
		e, err := sel.SelectMirror()
		require.NoError(t, err)
		sequence = append(sequence, e.Backend.Name())
	}

	// Interleaved WRR for weights (3,1), gcd 1: the threshold starts at
	// max=3 and drops by 1 each pass, so m1 passes at 3, 2 and 1 and m2
	// only at 1, giving m1, m1, m1, m2.
	require.Equal(t, []string{"m1", "m1", "m1", "m2"}, sequence)
}

func TestDWRRAllZeroWeightsFail(t *testing.T) {
	m1 := newEntry(t, "m1", 0)
	m2 := newEntry(t, "m2", 0)
	sel := selector.NewDWRR(mirror.ResourceOszFile, staticWeightSource{}, []*selector.Entry{m1, m2})

	_, err := sel.SelectMirror()
	require.Error(t, err)
}

func TestDWRRRefreshWeightsRecomputesGcdAndMax(t *testing.T) {
	m1 := newEntry(t, "m1", 3)
	m2 := newEntry(t, "m2", 1)
	source := staticWeightSource{weights: map[string]int{"m1": 10, "m2": 10}}
	sel := selector.NewDWRR(mirror.ResourceOszFile, source, []*selector.Entry{m1, m2})

	require.NoError(t, sel.RefreshWeights(context.Background()))

	counts := map[string]int{}
	for i := 0; i < 20; i++ {
		e, err := sel.SelectMirror()
		require.NoError(t, err)
		counts[e.Backend.Name()]++
	}
	require.Equal(t, 10, counts["m1"])
	require.Equal(t, 10, counts["m2"])
}
