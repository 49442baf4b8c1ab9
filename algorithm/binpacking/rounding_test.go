package binpacking

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/binpack/xerrors"
)

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Glue")
	require.NoError(t, err)
	assert.Equal(t, StrategyGlue, s)

	s, err = ParseStrategy("spectrum")
	require.NoError(t, err)
	assert.Equal(t, StrategySpectrum, s)

	_, err = ParseStrategy("greedy")
	assert.ErrorIs(t, err, xerrors.ErrUnknownStrategy)

	_, err = NewRounder("greedy", 0)
	assert.ErrorIs(t, err, xerrors.ErrUnknownStrategy)
}

func TestGranularityAndThreshold(t *testing.T) {
	assert.Equal(t, 10, Granularity(1))
	assert.Equal(t, 10, Granularity(5))
	assert.Equal(t, 98, Granularity(100))

	assert.Equal(t, 10, GlueThreshold(10, 10))
	assert.Equal(t, 98, GlueThreshold(100, 98))
}

func TestDiscretize(t *testing.T) {
	got := Discretize([]float64{0, 1.0 / 3.0, 4.0 / 3.0, 0.96, 2}, 10)
	want := []float64{0, 0.3, 1.3, 1, 2}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}
}

func TestGlue(t *testing.T) {
	inst := &Instance{Capacity: 100, Items: []ItemType{{ID: 1, Size: 1, Demand: 50}, {ID: 4, Size: 60, Demand: 1}}}
	patterns := []Pattern{
		{Items: map[int]int{1: 25}},
		{Items: map[int]int{1: 30}},
		{Items: map[int]int{4: 1}},
	}
	arena := NewGlueArena(inst)

	Glue(inst, patterns, []float64{2, 0, 1}, 10, arena)

	require.Equal(t, 1, arena.Len())
	g := arena.Items()[0]
	assert.Equal(t, GluedItem{ID: 5, Source: 1, Block: 10, Size: 10, Pattern: 0}, g)
	assert.Equal(t, map[int]int{1: 5, 5: 2}, patterns[0].Items)
	// 权重为零的模式保持不变。
	assert.Equal(t, map[int]int{1: 30}, patterns[1].Items)
	assert.Equal(t, map[int]int{4: 1}, patterns[2].Items)

	r := &Integral{Patterns: patterns, Counts: []int{2, 0, 1}, Arena: arena}
	assert.Equal(t, map[int]int{1: 50, 4: 1}, r.Coverage())
	assert.True(t, r.Feasible(inst))
}

func TestGlueSkipsBelowThreshold(t *testing.T) {
	inst := &Instance{Capacity: 100, Items: []ItemType{{ID: 1, Size: 12, Demand: 20}}}
	patterns := []Pattern{{Items: map[int]int{1: 8}}}
	arena := NewGlueArena(inst)

	Glue(inst, patterns, []float64{1}, 10, arena)
	assert.Zero(t, arena.Len())
	assert.Equal(t, map[int]int{1: 8}, patterns[0].Items)
}

func TestGlueRequiresCountAboveThreshold(t *testing.T) {
	inst := &Instance{Capacity: 100, Items: []ItemType{{ID: 1, Size: 2, Demand: 21}}}
	patterns := []Pattern{{Items: map[int]int{1: 10}}, {Items: map[int]int{1: 11}}}
	arena := NewGlueArena(inst)

	Glue(inst, patterns, []float64{1, 1}, 10, arena)
	assert.Equal(t, map[int]int{1: 10}, patterns[0].Items)
	require.Equal(t, 1, arena.Len())
	assert.Equal(t, 1, arena.Items()[0].Pattern)
	assert.Equal(t, map[int]int{1: 1, arena.Items()[0].ID: 1}, patterns[1].Items)
}

func TestGlueRounderDoesNotMutateInput(t *testing.T) {
	inst := &Instance{Capacity: 100, Items: []ItemType{{ID: 1, Size: 1, Demand: 50}}}
	frac := &Fractional{Instance: inst, Patterns: []Pattern{{Items: map[int]int{1: 25}}}, Weights: []float64{2}}

	r := (&GlueRounder{}).Round(frac, rand.New(rand.NewPCG(1, 0)))
	assert.Equal(t, map[int]int{1: 25}, frac.Patterns[0].Items)
	assert.Equal(t, []int{2}, r.Counts)
	assert.Equal(t, 1, r.Arena.Len())
	assert.Equal(t, map[int]int{1: 50}, r.Coverage())
}

func TestSizeClassAndCap(t *testing.T) {
	assert.Equal(t, 1, SizeClass(6, 10))
	assert.Equal(t, 2, SizeClass(5, 10))
	assert.Equal(t, 2, SizeClass(2, 10))
	assert.Equal(t, 3, SizeClass(1, 10))

	assert.Equal(t, 10, ClassCap(1))
	assert.Equal(t, 9, ClassCap(2))
	assert.Equal(t, 8, ClassCap(3))

	assert.InDelta(t, 1.2011224087864498, Perturbation(1), 1e-9)
	assert.InDelta(t, Perturbation(2), Perturbation(0), 1e-12)
}

func TestRebuild(t *testing.T) {
	inst := &Instance{Capacity: 60, Items: []ItemType{{ID: 1, Size: 1, Demand: 40}, {ID: 2, Size: 12, Demand: 20}}}
	patterns := []Pattern{
		{Items: map[int]int{1: 20, 2: 10}},
		{Items: map[int]int{1: 20}},
	}

	Rebuild(inst, patterns, []float64{0.5, 0})
	assert.Equal(t, map[int]int{1: 8, 2: 9}, patterns[0].Items)
	assert.Equal(t, map[int]int{1: 20}, patterns[1].Items)
}

func TestSpectrumRoundExtremes(t *testing.T) {
	inst := &Instance{Capacity: 10, Items: []ItemType{{ID: 1, Size: 3, Demand: 4}}}
	frac := &Fractional{
		Instance: inst,
		Patterns: []Pattern{{Items: map[int]int{1: 1}}, {Items: map[int]int{1: 3}}, {Items: map[int]int{1: 2}}},
		Weights:  []float64{1e-9, 4.0 / 3.0, 1 - 1e-9},
	}

	r := (&SpectrumRounder{Epsilon: DefaultEpsilon}).Round(frac, rand.New(rand.NewPCG(7, 0)))
	assert.Equal(t, []int{0, 2, 1}, r.Counts)
	assert.Equal(t, 3, r.Bins())
}

func TestRoundingDeterministic(t *testing.T) {
	inst := mixedInstance()
	frac := &Fractional{
		Instance: inst,
		Patterns: InitialPatterns(inst, true),
		Weights:  []float64{0.4, 0.55, 0.2, 0.9, 0.35},
	}

	for _, s := range []Strategy{StrategyGlue, StrategySpectrum} {
		rounder, err := NewRounder(s, 0)
		require.NoError(t, err)
		a := rounder.Round(frac, rand.New(rand.NewPCG(42, 3)))
		b := rounder.Round(frac, rand.New(rand.NewPCG(42, 3)))
		assert.Equal(t, a.Counts, b.Counts, s)
		assert.Equal(t, a.Patterns, b.Patterns, s)
		for _, c := range a.Counts {
			assert.True(t, c == 0 || c == 1, s)
		}
	}
}

func TestShortfalls(t *testing.T) {
	inst := &Instance{Capacity: 10, Items: []ItemType{{ID: 1, Size: 3, Demand: 4}, {ID: 2, Size: 5, Demand: 1}}}
	r := &Integral{Patterns: []Pattern{{Items: map[int]int{1: 3}}}, Counts: []int{1}}

	sf := r.Shortfalls(inst)
	require.Len(t, sf, 2)
	assert.Equal(t, Shortfall{ID: 1, Demand: 4, Covered: 3}, sf[0])
	assert.Equal(t, 1, sf[0].Missing())
	assert.Equal(t, Shortfall{ID: 2, Demand: 1, Covered: 0}, sf[1])
	assert.Equal(t, 2, missingCopies(sf))
	assert.False(t, r.Feasible(inst))
}
