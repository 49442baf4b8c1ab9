package binpacking

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/binpack/xerrors"
)

func newTestSolver(t *testing.T, opts ...Option) *Solver {
	t.Helper()
	s, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return s
}

func TestSolveScenarioDisjoint(t *testing.T) {
	inst := &Instance{Name: "s1", Capacity: 10, Items: []ItemType{{ID: 1, Size: 6, Demand: 1}, {ID: 2, Size: 5, Demand: 1}}}

	for _, s := range []Strategy{StrategyGlue, StrategySpectrum} {
		t.Run(string(s), func(t *testing.T) {
			res, err := newTestSolver(t, WithStrategy(s)).Solve(context.Background(), inst)
			require.NoError(t, err)
			d := res.Diagnostics
			assert.Equal(t, 2, d.BinsUsed)
			assert.Equal(t, 2, d.LowerBound)
			assert.Equal(t, 2, d.LPBound)
			assert.True(t, d.Converged)
			assert.Empty(t, d.Warnings)
			assert.Empty(t, d.Shortfalls)
			assert.Zero(t, d.GapPercent)
		})
	}
}

func TestSolveScenarioMultiCopy(t *testing.T) {
	inst := &Instance{Name: "s2", Capacity: 10, Items: []ItemType{{ID: 1, Size: 3, Demand: 4}}}

	res, err := newTestSolver(t, WithStrategy(StrategySpectrum)).Solve(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Diagnostics.BinsUsed)
	assert.Equal(t, 2, res.Diagnostics.Patterns)
	assert.Empty(t, res.Diagnostics.Shortfalls)
	ps, cs := res.Integral.Used()
	assert.Equal(t, []Pattern{{Items: map[int]int{1: 3}}}, ps)
	assert.Equal(t, []int{2}, cs)

	res, err = newTestSolver(t, WithStrategy(StrategyGlue), WithTrials(4), WithRepair(true)).Solve(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Diagnostics.BinsUsed)
	assert.True(t, res.Integral.Feasible(inst))
}

func TestSolveScenarioInfeasible(t *testing.T) {
	inst := &Instance{Name: "s3", Capacity: 10, Items: []ItemType{{ID: 1, Size: 11, Demand: 1}}}

	_, err := newTestSolver(t, WithLPSolver(failingSolver{})).Solve(context.Background(), inst)
	assert.ErrorIs(t, err, xerrors.ErrInfeasibleInstance)
}

func TestSolveNonConvergenceIsWarning(t *testing.T) {
	inst := &Instance{Name: "cap", Capacity: 10, Items: []ItemType{{ID: 1, Size: 3, Demand: 4}}}

	res, err := newTestSolver(t, WithMaxIterations(1), WithStrategy(StrategySpectrum)).Solve(context.Background(), inst)
	require.NoError(t, err)
	d := res.Diagnostics
	assert.Equal(t, StateExhausted, d.State)
	assert.False(t, d.Converged)
	require.NotEmpty(t, d.Warnings)
	assert.ErrorIs(t, d.Warnings[0], xerrors.ErrNonConvergence)
	assert.Equal(t, 4, d.BinsUsed)
	assert.NotEmpty(t, d.WarningMessages())
}

func TestSolveRepairKeepsLowerBound(t *testing.T) {
	inst := mixedInstance()

	for _, s := range []Strategy{StrategyGlue, StrategySpectrum} {
		t.Run(string(s), func(t *testing.T) {
			res, err := newTestSolver(t, WithStrategy(s), WithSeed(11), WithTrials(3), WithRepair(true)).
				Solve(context.Background(), inst)
			require.NoError(t, err)
			d := res.Diagnostics
			assert.True(t, res.Integral.Feasible(inst))
			assert.GreaterOrEqual(t, d.BinsUsed, d.LowerBound)
			assert.GreaterOrEqual(t, d.BinsUsed, d.LPBound)
			assert.Equal(t, 18, d.LowerBound)
			assert.GreaterOrEqual(t, d.GapPercent, 0.0)
			if len(d.Shortfalls) > 0 {
				assert.Positive(t, d.Repaired)
				assert.ErrorIs(t, d.Warnings[len(d.Warnings)-1], xerrors.ErrRoundingCoverageShortfall)
			}
		})
	}
}

func TestSolveDeterministic(t *testing.T) {
	inst := mixedInstance()

	for _, s := range []Strategy{StrategyGlue, StrategySpectrum} {
		a, err := newTestSolver(t, WithStrategy(s), WithSeed(99), WithTrials(2)).Solve(context.Background(), inst)
		require.NoError(t, err)
		b, err := newTestSolver(t, WithStrategy(s), WithSeed(99), WithTrials(2)).Solve(context.Background(), inst)
		require.NoError(t, err)

		assert.Equal(t, a.Integral.Counts, b.Integral.Counts, s)
		assert.Equal(t, a.Integral.Patterns, b.Integral.Patterns, s)
		assert.Equal(t, a.Diagnostics.Trial, b.Diagnostics.Trial, s)
		assert.Equal(t, a.Diagnostics.Shortfalls, b.Diagnostics.Shortfalls, s)
	}
}

func TestSolveDoesNotMutateGeneration(t *testing.T) {
	inst := &Instance{Name: "glue", Capacity: 100, Items: []ItemType{{ID: 1, Size: 1, Demand: 50}}}

	res, err := newTestSolver(t, WithStrategy(StrategyGlue)).Solve(context.Background(), inst)
	require.NoError(t, err)
	for _, p := range res.Generation.Patterns {
		for id := range p.Items {
			assert.Equal(t, 1, id)
		}
	}
	assert.True(t, res.Integral.Feasible(inst))
}

func TestNewSolverOptions(t *testing.T) {
	_, err := New(WithTrials(0))
	assert.ErrorIs(t, err, xerrors.ErrInvalidConfig)

	_, err = New(WithMaxIterations(0))
	assert.ErrorIs(t, err, xerrors.ErrInvalidConfig)

	_, err = New(WithEpsilon(2))
	assert.ErrorIs(t, err, xerrors.ErrInvalidConfig)

	_, err = New(WithStrategy("nope"))
	assert.ErrorIs(t, err, xerrors.ErrUnknownStrategy)

	s, err := New()
	require.NoError(t, err)
	assert.Equal(t, StrategyGlue, s.Strategy())
}

func TestRepair(t *testing.T) {
	inst := &Instance{Capacity: 10, Items: []ItemType{{ID: 1, Size: 3, Demand: 4}, {ID: 2, Size: 6, Demand: 1}}}
	r := &Integral{Patterns: []Pattern{{Items: map[int]int{1: 3}}}, Counts: []int{1}}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fixed := Repair(inst, r, r.Shortfalls(inst), logger)
	assert.Equal(t, 2, fixed.Bins())
	assert.Contains(t, buf.String(), "repaired rounding shortfall")
	assert.Contains(t, buf.String(), "bins_added=1")
	assert.True(t, fixed.Feasible(inst))
	assert.Equal(t, map[int]int{1: 1, 2: 1}, fixed.Patterns[1].Items)
	// 原方案不变。
	assert.Len(t, r.Patterns, 1)
	assert.Equal(t, 1, r.Bins())
}

func TestGap(t *testing.T) {
	assert.Equal(t, 0.0, Gap(5, 0))
	assert.Equal(t, 0.0, Gap(18, 18))
	assert.Equal(t, 11.11, Gap(20, 18))
}
