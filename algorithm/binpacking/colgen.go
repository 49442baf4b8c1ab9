package binpacking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/binpack/tracing"
	"github.com/wyfcoding/binpack/xerrors"
)

// State 列生成驱动的状态。
type State int

const (
	StateInitializing State = iota
	StateSolving
	StatePricing
	StateConverged
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateSolving:
		return "solving"
	case StatePricing:
		return "pricing"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MarshalText 以名称序列化状态。
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 按名称解析状态。
func (s *State) UnmarshalText(b []byte) error {
	for c := StateInitializing; c <= StateExhausted; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("%w: unknown state %q", xerrors.ErrInvalidInput, b)
}

// DefaultMaxIterations 列生成迭代上限的默认值。
const DefaultMaxIterations = 100

// Generation 列生成的最终分数解。
type Generation struct {
	Patterns   []Pattern
	Weights    []float64
	Duals      []float64
	History    []float64 // 每次 LP 求解后的目标值
	Objective  float64
	Iterations int
	State      State
	Err        error // 未收敛时为 ErrNonConvergence
}

// Converged 是否达到 LP 最优。
func (g *Generation) Converged() bool {
	return g.State == StateConverged
}

// Fractional 转为取整流水线的输入（模式深拷贝）。
func (g *Generation) Fractional(inst *Instance) *Fractional {
	return &Fractional{
		Instance: inst,
		Patterns: clonePatterns(g.Patterns),
		Weights:  append([]float64(nil), g.Weights...),
	}
}

// Generator 列生成驱动：交替调用主问题与定价子问题。
type Generator struct {
	master        *Master
	logger        *slog.Logger
	maxIterations int
	epsilon       float64
	gridDecimals  int
	maxGridUnits  int64
	denseSeed     bool
}

// NewGenerator 由求解选项构造驱动。
func NewGenerator(o *options) *Generator {
	return &Generator{
		master:        NewMaster(o.lpSolver),
		logger:        o.logger,
		maxIterations: o.maxIterations,
		epsilon:       o.epsilon,
		gridDecimals:  o.gridDecimals,
		maxGridUnits:  o.maxGridUnits,
		denseSeed:     o.denseSeed,
	}
}

// Generate 运行 Gilmore-Gomory 列生成。
// LP 求解失败是致命错误；达到迭代上限或 ctx 结束时返回当前最优分数解，State 为 Exhausted。
func (g *Generator) Generate(ctx context.Context, inst *Instance) (*Generation, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	grid, err := NewGrid(inst, g.gridDecimals, g.maxGridUnits)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "binpacking.column_generation")
	defer span.End()
	tracing.AddTag(ctx, "instance", inst.Name)

	gen := &Generation{State: StateInitializing}
	patterns := InitialPatterns(inst, g.denseSeed)

	for {
		if gen.Iterations > 0 && ctx.Err() != nil {
			gen.State = StateExhausted
			gen.Err = fmt.Errorf("%w: %s after %d iterations: %w", xerrors.ErrNonConvergence, inst.Name, gen.Iterations, ctx.Err())
			break
		}

		gen.State = StateSolving
		gen.Iterations++
		sol, err := g.master.Solve(ctx, inst, patterns)
		if err != nil {
			tracing.SetError(ctx, err)
			return nil, err
		}
		gen.Patterns = patterns
		gen.Weights = sol.Weights
		gen.Duals = sol.Duals
		gen.Objective = sol.Objective
		gen.History = append(gen.History, sol.Objective)

		gen.State = StatePricing
		candidate := Price(inst, grid, sol.Duals)
		reduced := ReducedCost(candidate)

		g.logger.DebugContext(ctx, "column generation iteration",
			"instance", inst.Name,
			"iteration", gen.Iterations,
			"objective", sol.Objective,
			"patterns", len(patterns),
			"reduced_cost", reduced)

		if candidate.Empty() || reduced >= -g.epsilon {
			gen.State = StateConverged
			break
		}
		if containsPattern(patterns, candidate) {
			g.logger.WarnContext(ctx, "pricing returned an existing pattern, stopping",
				"instance", inst.Name, "iteration", gen.Iterations, "reduced_cost", reduced)
			gen.State = StateConverged
			break
		}
		if gen.Iterations >= g.maxIterations {
			gen.State = StateExhausted
			gen.Err = fmt.Errorf("%w: %s after %d iterations (reduced cost %.3g)",
				xerrors.ErrNonConvergence, inst.Name, gen.Iterations, reduced)
			break
		}

		candidate.Value = 0
		patterns = append(patterns, candidate)
	}

	tracing.AddTag(ctx, "iterations", gen.Iterations)
	tracing.AddTag(ctx, "patterns", len(gen.Patterns))
	tracing.AddTag(ctx, "state", gen.State.String())

	g.logger.InfoContext(ctx, "column generation finished",
		"instance", inst.Name,
		"state", gen.State.String(),
		"iterations", gen.Iterations,
		"patterns", len(gen.Patterns),
		"objective", gen.Objective)

	return gen, nil
}

func containsPattern(ps []Pattern, p Pattern) bool {
	for _, q := range ps {
		if q.Equal(p) {
			return true
		}
	}
	return false
}
