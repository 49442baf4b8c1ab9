package binpacking

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/wyfcoding/binpack/algorithm/lp"
	"github.com/wyfcoding/binpack/xerrors"
)

// MasterSolution 主问题在当前模式集合上的解。
type MasterSolution struct {
	Weights   []float64 // 每个模式一个，>= 0
	Duals     []float64 // 每种物品一个，顺序同 Instance.Items
	Objective float64
}

// Master 构建需求覆盖 LP 并委托外部求解器求解。
type Master struct {
	solver lp.Solver
}

// NewMaster 创建主问题管理器；solver 为 nil 时使用单纯形表实现。
func NewMaster(solver lp.Solver) *Master {
	if solver == nil {
		solver = lp.Simplex{}
	}
	return &Master{solver: solver}
}

// Solve 每种物品一行（>= 需求），每个模式一列（目标系数 1，系数为件数）。
func (m *Master) Solve(ctx context.Context, inst *Instance, patterns []Pattern) (*MasterSolution, error) {
	problem, err := m.build(inst, patterns)
	if err != nil {
		return nil, err
	}

	sol, err := m.solver.Solve(ctx, problem)
	switch {
	case err == nil:
	case errors.Is(err, xerrors.ErrLPInfeasible):
		return nil, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", xerrors.ErrLPSolver, err)
	}

	if len(sol.Primal) != len(patterns) || len(sol.Dual) != len(inst.Items) {
		return nil, fmt.Errorf("%w: solver returned %d weights and %d duals for %d patterns and %d rows",
			xerrors.ErrLPSolver, len(sol.Primal), len(sol.Dual), len(patterns), len(inst.Items))
	}

	weights := make([]float64, len(sol.Primal))
	for j, x := range sol.Primal {
		if math.IsNaN(x) {
			return nil, fmt.Errorf("%w: weight %d is NaN", xerrors.ErrLPSolver, j)
		}
		weights[j] = math.Max(0, x)
	}

	return &MasterSolution{
		Weights:   weights,
		Duals:     sol.Dual,
		Objective: sol.Objective,
	}, nil
}

func (m *Master) build(inst *Instance, patterns []Pattern) (*lp.CoveringProblem, error) {
	rows := inst.Index()
	problem := &lp.CoveringProblem{
		Demands: inst.Demands(),
		Columns: make([]lp.Column, len(patterns)),
	}

	for j, p := range patterns {
		col := lp.Column{Cost: 1, Entries: make([]lp.Entry, 0, len(p.Items))}
		for _, id := range p.IDs() {
			row, ok := rows[id]
			if !ok {
				return nil, fmt.Errorf("%w: pattern %d references unknown item %d", xerrors.ErrLPSolver, j, id)
			}
			col.Entries = append(col.Entries, lp.Entry{Row: row, Coef: float64(p.Items[id])})
		}
		problem.Columns[j] = col
	}
	return problem, nil
}
