package lp

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	convexlp "gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/wyfcoding/binpack/xerrors"
)

// Gonum 基于 gonum 修正单纯形法的求解器。
// gonum 只返回原始解，因此原始问题与对偶问题各求解一次。
type Gonum struct {
	Tol float64
}

// Solve 实现 Solver 接口。
func (g Gonum) Solve(ctx context.Context, p *CoveringProblem) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if sol, ok, err := p.trivial(); ok {
		return sol, err
	}

	tol := g.Tol
	if tol <= 0 {
		tol = 1e-10
	}

	m, n := len(p.Demands), len(p.Columns)
	a := p.dense()

	// 原始标准形：min cost·x, s.t. [A −I][x; s] = d。
	primalA := mat.NewDense(m, n+m, nil)
	primalC := make([]float64, n+m)
	for j, col := range p.Columns {
		primalC[j] = col.Cost
	}
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			primalA.Set(i, j, a[i][j])
		}
		primalA.Set(i, n+i, -1)
	}

	optF, optX, err := convexlp.Simplex(primalC, primalA, p.Demands, tol, nil)
	if err != nil {
		return nil, mapGonumError(err, "primal")
	}

	// 对偶标准形：min −d·y, s.t. [Aᵀ I][y; t] = cost。
	dualA := mat.NewDense(n, m+n, nil)
	dualC := make([]float64, m+n)
	costs := make([]float64, n)
	for i, d := range p.Demands {
		dualC[i] = -d
	}
	for j, col := range p.Columns {
		for i := 0; i < m; i++ {
			dualA.Set(j, i, a[i][j])
		}
		dualA.Set(j, m+j, 1)
		costs[j] = col.Cost
	}

	_, optY, err := convexlp.Simplex(dualC, dualA, costs, tol, nil)
	if err != nil {
		return nil, mapGonumError(err, "dual")
	}

	primal := make([]float64, n)
	for j := range primal {
		primal[j] = max(0, optX[j])
	}
	dual := make([]float64, m)
	for i := range dual {
		dual[i] = max(0, optY[i])
	}

	return &Solution{Primal: primal, Dual: dual, Objective: optF}, nil
}

func mapGonumError(err error, phase string) error {
	switch {
	case phase == "primal" && errors.Is(err, convexlp.ErrInfeasible):
		return fmt.Errorf("%w: %w", xerrors.ErrLPInfeasible, err)
	case phase == "dual" && (errors.Is(err, convexlp.ErrUnbounded) || errors.Is(err, convexlp.ErrZeroColumn)):
		return fmt.Errorf("%w: %w", xerrors.ErrLPInfeasible, err)
	default:
		return fmt.Errorf("gonum %s simplex: %w", phase, err)
	}
}

// NewSolver 按名称构造求解器，空名称返回默认的单纯形表实现。
func NewSolver(name string) (Solver, error) {
	switch name {
	case "", "simplex":
		return Simplex{}, nil
	case "gonum":
		return Gonum{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown lp backend %q", xerrors.ErrInvalidConfig, name)
	}
}
