package binpacking

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/binpack/algorithm/lp"
	"github.com/wyfcoding/binpack/xerrors"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGenerator(opts ...Option) *Generator {
	o := defaultOptions()
	o.logger = quietLogger()
	for _, opt := range opts {
		opt(o)
	}
	return NewGenerator(o)
}

func mixedInstance() *Instance {
	return &Instance{
		Name:     "mixed",
		Capacity: 100,
		Items: []ItemType{
			{ID: 1, Size: 45, Demand: 12},
			{ID: 2, Size: 36, Demand: 9},
			{ID: 3, Size: 31, Demand: 14},
			{ID: 4, Size: 14, Demand: 20},
			{ID: 5, Size: 7, Demand: 25},
		},
	}
}

func TestGenerateDisjointItems(t *testing.T) {
	inst := &Instance{Name: "s1", Capacity: 10, Items: []ItemType{{ID: 1, Size: 6, Demand: 1}, {ID: 2, Size: 5, Demand: 1}}}

	gen, err := testGenerator().Generate(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, StateConverged, gen.State)
	assert.Equal(t, 1, gen.Iterations)
	require.Len(t, gen.Weights, 2)
	assert.InDelta(t, 1.0, gen.Weights[0], 1e-9)
	assert.InDelta(t, 1.0, gen.Weights[1], 1e-9)
	assert.InDelta(t, 2.0, gen.Objective, 1e-9)
}

func TestGenerateFindsMultiCopyPattern(t *testing.T) {
	inst := &Instance{Name: "s2", Capacity: 10, Items: []ItemType{{ID: 1, Size: 3, Demand: 4}}}

	for name, solver := range map[string]lp.Solver{"simplex": lp.Simplex{}, "gonum": lp.Gonum{}} {
		t.Run(name, func(t *testing.T) {
			gen, err := testGenerator(WithLPSolver(solver)).Generate(context.Background(), inst)
			require.NoError(t, err)
			assert.True(t, gen.Converged())
			assert.Equal(t, 2, gen.Iterations)
			require.Len(t, gen.Patterns, 2)
			assert.Equal(t, map[int]int{1: 3}, gen.Patterns[1].Items)
			assert.InDelta(t, 0.0, gen.Weights[0], 1e-9)
			assert.InDelta(t, 4.0/3.0, gen.Weights[1], 1e-9)
			assert.InDelta(t, 1.0/3.0, gen.Duals[0], 1e-9)
			require.Len(t, gen.History, 2)
			assert.InDelta(t, 4.0, gen.History[0], 1e-9)
			assert.InDelta(t, 4.0/3.0, gen.History[1], 1e-9)
		})
	}
}

func TestGenerateInfeasibleInstance(t *testing.T) {
	inst := &Instance{Name: "s3", Capacity: 10, Items: []ItemType{{ID: 1, Size: 3, Demand: 1}, {ID: 2, Size: 12, Demand: 1}}}

	_, err := testGenerator(WithLPSolver(failingSolver{})).Generate(context.Background(), inst)
	assert.ErrorIs(t, err, xerrors.ErrInfeasibleInstance)
}

func TestGeneratePatternsFeasibleAndMonotone(t *testing.T) {
	inst := mixedInstance()

	gen, err := testGenerator().Generate(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, StateConverged, gen.State)
	assert.LessOrEqual(t, gen.Iterations, DefaultMaxIterations)
	assert.Len(t, gen.History, gen.Iterations)

	for _, p := range gen.Patterns {
		assert.True(t, PatternFeasible(p, inst), "pattern %v exceeds capacity", p.Items)
	}
	for i := 1; i < len(gen.History); i++ {
		assert.LessOrEqual(t, gen.History[i], gen.History[i-1]+1e-7)
	}
	assert.GreaterOrEqual(t, gen.Objective, inst.TotalVolume()/inst.Capacity-1e-7)
}

func TestGenerateIterationCap(t *testing.T) {
	inst := &Instance{Name: "cap", Capacity: 10, Items: []ItemType{{ID: 1, Size: 3, Demand: 4}}}

	gen, err := testGenerator(WithMaxIterations(1)).Generate(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, gen.State)
	assert.Equal(t, 1, gen.Iterations)
	assert.Len(t, gen.Patterns, 1)
	assert.ErrorIs(t, gen.Err, xerrors.ErrNonConvergence)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testGenerator().Generate(ctx, mixedInstance())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	solver := &cancelAfter{Solver: lp.Simplex{}, n: 1, cancel: cancel}

	gen, err := testGenerator(WithLPSolver(solver)).Generate(ctx, mixedInstance())
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, gen.State)
	assert.Equal(t, 1, gen.Iterations)
	assert.ErrorIs(t, gen.Err, xerrors.ErrNonConvergence)
	assert.ErrorIs(t, gen.Err, context.Canceled)
	assert.Len(t, gen.Weights, len(gen.Patterns))
}

func TestGenerateSolverFailure(t *testing.T) {
	_, err := testGenerator(WithLPSolver(failingSolver{})).Generate(context.Background(), mixedInstance())
	assert.ErrorIs(t, err, xerrors.ErrLPSolver)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "converged", StateConverged.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "unknown", State(42).String())
}

type failingSolver struct{}

func (failingSolver) Solve(context.Context, *lp.CoveringProblem) (*lp.Solution, error) {
	return nil, xerrors.ErrMathConvergence
}

// cancelAfter 在第 n 次求解后取消上下文。
type cancelAfter struct {
	lp.Solver
	n      int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfter) Solve(ctx context.Context, p *lp.CoveringProblem) (*lp.Solution, error) {
	sol, err := c.Solver.Solve(ctx, p)
	c.calls++
	if c.calls >= c.n {
		c.cancel()
	}
	return sol, err
}
