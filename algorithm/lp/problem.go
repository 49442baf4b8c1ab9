// Package lp 定义了覆盖型线性规划的求解器契约及其实现。
//
// 主问题形如：
//
//	minimize   Σ cost_j · x_j
//	subject to Σ_j a_ij · x_j >= demand_i   (每一行)
//	           x_j >= 0
//
// 求解器每次调用都是一次全新的求解，调用之间不保留任何状态。
package lp

import (
	"context"
	"fmt"

	"github.com/wyfcoding/binpack/xerrors"
)

// Entry 稀疏矩阵中的一个非零元素。
type Entry struct {
	Row  int
	Coef float64
}

// Column 约束矩阵的一列及其目标系数。
type Column struct {
	Entries []Entry
	Cost    float64
}

// CoveringProblem 需求覆盖线性规划。
type CoveringProblem struct {
	Demands []float64 // 每行的下界
	Columns []Column
}

// Solution 求解结果：每列一个原始值，每行一个对偶价格。
type Solution struct {
	Primal    []float64
	Dual      []float64
	Objective float64
}

// Solver 外部线性规划求解器契约。
type Solver interface {
	Solve(ctx context.Context, p *CoveringProblem) (*Solution, error)
}

// Rows 返回约束行数。
func (p *CoveringProblem) Rows() int { return len(p.Demands) }

// Validate 检查稀疏矩阵下标与系数。
func (p *CoveringProblem) Validate() error {
	for j, col := range p.Columns {
		if col.Cost < 0 {
			return fmt.Errorf("%w: column %d has negative cost %g", xerrors.ErrInvalidInput, j, col.Cost)
		}
		for _, e := range col.Entries {
			if e.Row < 0 || e.Row >= len(p.Demands) {
				return fmt.Errorf("%w: column %d references row %d of %d", xerrors.ErrDimMismatch, j, e.Row, len(p.Demands))
			}
		}
	}
	return nil
}

// dense 将列稀疏表示展开为 rows x cols 的稠密矩阵（按行存储）。
func (p *CoveringProblem) dense() [][]float64 {
	a := make([][]float64, len(p.Demands))
	for i := range a {
		a[i] = make([]float64, len(p.Columns))
	}
	for j, col := range p.Columns {
		for _, e := range col.Entries {
			a[e.Row][j] += e.Coef
		}
	}
	return a
}

// trivial 处理没有行或没有列的退化问题。ok 为 false 时需要真正求解。
func (p *CoveringProblem) trivial() (*Solution, bool, error) {
	m, n := len(p.Demands), len(p.Columns)
	if m != 0 && n != 0 {
		return nil, false, nil
	}
	for i, d := range p.Demands {
		if d > lpEpsilon {
			return nil, true, fmt.Errorf("%w: row %d has demand %g and no column covers it", xerrors.ErrLPInfeasible, i, d)
		}
	}
	return &Solution{Primal: make([]float64, n), Dual: make([]float64, m)}, true, nil
}
