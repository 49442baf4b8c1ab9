package lp

import (
	"context"
	"fmt"
	"math"

	"github.com/wyfcoding/binpack/xerrors"
)

// LinearProgramming 结构体实现了标准的单纯形法 (Simplex Method)。
// 求解 max c·x, s.t. Ax <= b, x >= 0，要求 b >= 0（原点可行，无需第一阶段）。
type LinearProgramming struct {
	constraintsCount int         // 约束个数。
	variablesCount   int         // 变量个数。
	tableau          [][]float64 // 单纯形表。
	basis            []int       // 每个约束行当前的基变量下标。
	maxIterations    int
}

const (
	lpEpsilon = 1e-9
	// 连续退化主元次数超过该值后切换到 Bland 规则以避免循环。
	blandThreshold = 50
)

// NewLinearProgramming 初始化一个单纯形求解器。
func NewLinearProgramming(objective []float64, constraints [][]float64, bounds []float64) (*LinearProgramming, error) {
	m := len(constraints)
	n := len(objective)

	if m != len(bounds) {
		return nil, xerrors.ErrDimMismatch
	}

	tableau := make([][]float64, m+1)
	for i := range tableau {
		tableau[i] = make([]float64, n+m+1)
	}

	basis := make([]int, m)
	for i := 0; i < m; i++ {
		if len(constraints[i]) != n {
			return nil, xerrors.ErrDimMismatch
		}
		if bounds[i] < 0 {
			return nil, fmt.Errorf("%w: bound %d is negative", xerrors.ErrInvalidInput, i)
		}
		copy(tableau[i], constraints[i])

		tableau[i][n+i] = 1.0
		tableau[i][n+m] = bounds[i]
		basis[i] = n + i
	}

	for j := 0; j < n; j++ {
		tableau[m][j] = -objective[j]
	}

	return &LinearProgramming{
		constraintsCount: m,
		variablesCount:   n,
		tableau:          tableau,
		basis:            basis,
		maxIterations:    max(10000, 50*(n+m)),
	}, nil
}

// SetMaxIterations 设置主元迭代上限。
func (lp *LinearProgramming) SetMaxIterations(n int) {
	if n > 0 {
		lp.maxIterations = n
	}
}

// Solve 执行单纯形迭代求解。
func (lp *LinearProgramming) Solve() ([]float64, float64, error) {
	rhs := lp.variablesCount + lp.constraintsCount
	degenerate := 0

	for iter := 0; ; iter++ {
		if iter >= lp.maxIterations {
			return nil, 0, xerrors.ErrMathConvergence
		}

		pivotCol := lp.findPivotColumn(degenerate >= blandThreshold)
		if pivotCol == -1 {
			break
		}

		pivotRow := lp.findPivotRow(pivotCol)
		if pivotRow == -1 {
			return nil, 0, xerrors.ErrUnboundedProblem
		}

		if lp.tableau[pivotRow][rhs] < lpEpsilon {
			degenerate++
		} else {
			degenerate = 0
		}

		lp.pivot(pivotRow, pivotCol)
	}

	return lp.extractSolution(), lp.tableau[lp.constraintsCount][rhs], nil
}

// DualValues 返回每个约束的影子价格，即目标行在松弛变量列上的系数。
// 仅在 Solve 成功后有意义。
func (lp *LinearProgramming) DualValues() []float64 {
	m, n := lp.constraintsCount, lp.variablesCount
	duals := make([]float64, m)
	for i := 0; i < m; i++ {
		duals[i] = math.Max(0, lp.tableau[m][n+i])
	}
	return duals
}

func (lp *LinearProgramming) findPivotColumn(bland bool) int {
	pivotCol := -1
	minVal := -lpEpsilon

	targetRowIdx := lp.constraintsCount
	limit := lp.variablesCount + lp.constraintsCount

	for j := 0; j < limit; j++ {
		v := lp.tableau[targetRowIdx][j]
		if v >= -lpEpsilon {
			continue
		}
		if bland {
			return j
		}
		if v < minVal {
			minVal = v
			pivotCol = j
		}
	}

	return pivotCol
}

// findPivotRow 最小比值检验；比值相同时选基变量下标最小的行（Bland）。
func (lp *LinearProgramming) findPivotRow(pivotCol int) int {
	pivotRow := -1
	minRatio := math.MaxFloat64

	constColIdx := lp.variablesCount + lp.constraintsCount

	for i := 0; i < lp.constraintsCount; i++ {
		if lp.tableau[i][pivotCol] <= lpEpsilon {
			continue
		}
		ratio := lp.tableau[i][constColIdx] / lp.tableau[i][pivotCol]
		switch {
		case ratio < minRatio-lpEpsilon:
			minRatio = ratio
			pivotRow = i
		case ratio <= minRatio+lpEpsilon && pivotRow >= 0 && lp.basis[i] < lp.basis[pivotRow]:
			pivotRow = i
		}
	}

	return pivotRow
}

func (lp *LinearProgramming) pivot(row, col int) {
	pivotVal := lp.tableau[row][col]
	limit := lp.variablesCount + lp.constraintsCount

	for j := 0; j <= limit; j++ {
		lp.tableau[row][j] /= pivotVal
	}

	for i := 0; i <= lp.constraintsCount; i++ {
		if i == row {
			continue
		}
		multiplier := lp.tableau[i][col]
		if multiplier == 0 {
			continue
		}
		for j := 0; j <= limit; j++ {
			lp.tableau[i][j] -= multiplier * lp.tableau[row][j]
		}
	}

	lp.basis[row] = col
}

func (lp *LinearProgramming) extractSolution() []float64 {
	solution := make([]float64, lp.variablesCount)
	constColIdx := lp.variablesCount + lp.constraintsCount

	for i, b := range lp.basis {
		if b < lp.variablesCount {
			solution[b] = lp.tableau[i][constColIdx]
		}
	}

	return solution
}

// Simplex 基于单纯形表的默认求解器。
// 它求解覆盖问题的对偶（装填问题）max d·y, s.t. Aᵀy <= cost, y >= 0，
// 对偶最优解即行价格，松弛列的影子价格即各列的原始值。
type Simplex struct {
	MaxIterations int
}

// Solve 实现 Solver 接口。
func (s Simplex) Solve(ctx context.Context, p *CoveringProblem) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if sol, ok, err := p.trivial(); ok {
		return sol, err
	}

	a := p.dense()
	m, n := len(p.Demands), len(p.Columns)

	// 对偶问题的约束矩阵为 Aᵀ：每列一个约束，每行一个变量。
	constraints := make([][]float64, n)
	bounds := make([]float64, n)
	for j := 0; j < n; j++ {
		constraints[j] = make([]float64, m)
		for i := 0; i < m; i++ {
			constraints[j][i] = a[i][j]
		}
		bounds[j] = p.Columns[j].Cost
	}

	solver, err := NewLinearProgramming(p.Demands, constraints, bounds)
	if err != nil {
		return nil, err
	}
	solver.SetMaxIterations(s.MaxIterations)

	duals, objective, err := solver.Solve()
	if err != nil {
		if err == xerrors.ErrUnboundedProblem {
			// 对偶无界等价于覆盖问题不可行。
			return nil, fmt.Errorf("%w: %w", xerrors.ErrLPInfeasible, err)
		}
		return nil, err
	}

	for i := range duals {
		duals[i] = math.Max(0, duals[i])
	}

	return &Solution{
		Primal:    solver.DualValues(),
		Dual:      duals,
		Objective: objective,
	}, nil
}
