// Package batch 并发求解多个实例：每个实例独立运行，单个失败只记录在其报告中。
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/wyfcoding/binpack/algorithm/binpacking"
	"github.com/wyfcoding/binpack/algorithm/lp"
	"github.com/wyfcoding/binpack/config"
	"github.com/wyfcoding/binpack/dataset"
	"github.com/wyfcoding/binpack/idgen"
	"github.com/wyfcoding/binpack/metrics"
	"github.com/wyfcoding/binpack/xerrors"
)

// ErrTaskPanic 求解过程中发生 panic。
var ErrTaskPanic = errors.New("solve task panicked")

// Baseline 基线启发式的结果。
type Baseline struct {
	Heuristic  binpacking.Heuristic `json:"heuristic"`
	Bins       int                  `json:"bins"`
	GapPercent float64              `json:"gap_percent"`
}

// Report 单个实例的求解报告。
type Report struct {
	RunID       string                  `json:"run_id"`
	Instance    string                  `json:"instance"`
	Optimal     int                     `json:"optimal,omitempty"`
	Diagnostics *binpacking.Diagnostics `json:"diagnostics,omitempty"`
	Integral    *binpacking.Integral    `json:"integral,omitempty"`
	Baselines   []Baseline              `json:"baselines,omitempty"`
	Warnings    []string                `json:"warnings,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Err         error                   `json:"-"`
}

// Failed 该实例是否求解失败。
func (r *Report) Failed() bool {
	return r.Err != nil
}

// Stats 累计统计。
type Stats struct {
	Solved     atomic.Int64
	Failed     atomic.Int64
	Shortfalls atomic.Int64
}

// Runner 批量求解器。
type Runner struct {
	solver     *binpacking.Solver
	heuristics []binpacking.Heuristic
	workers    int
	timeout    time.Duration
	metrics    *metrics.SolverMetrics
	logger     *slog.Logger
	stats      Stats
}

// Option Runner 选项。
type Option func(*Runner)

// WithWorkers 并发数，<= 0 时使用 GOMAXPROCS。
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithTimeout 单个实例的列生成时限，0 表示不限。
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithHeuristics 同时运行的基线启发式。
func WithHeuristics(hs ...binpacking.Heuristic) Option {
	return func(r *Runner) { r.heuristics = hs }
}

// WithMetrics 记录求解器指标。
func WithMetrics(m *metrics.SolverMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger 日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner 创建批量求解器。
func NewRunner(solver *binpacking.Solver, opts ...Option) *Runner {
	r := &Runner{solver: solver, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers <= 0 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// SolverOptions 把配置转换为求解器选项。
func SolverOptions(s config.SolverConfig, rc config.RoundingConfig, logger *slog.Logger) ([]binpacking.Option, error) {
	backend, err := lp.NewSolver(s.LPBackend)
	if err != nil {
		return nil, err
	}
	strategy, err := binpacking.ParseStrategy(rc.Strategy)
	if err != nil {
		return nil, err
	}
	return []binpacking.Option{
		binpacking.WithLPSolver(backend),
		binpacking.WithLogger(logger),
		binpacking.WithMaxIterations(s.MaxIterations),
		binpacking.WithEpsilon(s.Epsilon),
		binpacking.WithGrid(s.GridDecimals, s.MaxGridUnits),
		binpacking.WithDenseSeed(s.DenseSeed),
		binpacking.WithStrategy(strategy),
		binpacking.WithSeed(rc.Seed),
		binpacking.WithTrials(rc.Trials),
		binpacking.WithRepair(rc.Repair),
	}, nil
}

// FromConfig 按完整配置构造 Runner。
func FromConfig(cfg *config.Config, m *metrics.SolverMetrics, logger *slog.Logger) (*Runner, error) {
	opts, err := SolverOptions(cfg.Solver, cfg.Rounding, logger)
	if err != nil {
		return nil, err
	}
	solver, err := binpacking.New(opts...)
	if err != nil {
		return nil, err
	}

	hs := make([]binpacking.Heuristic, 0, len(cfg.Batch.Heuristics))
	for _, name := range cfg.Batch.Heuristics {
		h, err := binpacking.ParseHeuristic(name)
		if err != nil {
			return nil, err
		}
		hs = append(hs, h)
	}

	return NewRunner(solver,
		WithWorkers(cfg.Batch.Workers),
		WithTimeout(cfg.Solver.Timeout),
		WithHeuristics(hs...),
		WithMetrics(m),
		WithLogger(logger),
	), nil
}

// Stats 返回累计统计。
func (r *Runner) Stats() *Stats {
	return &r.stats
}

// Run 并发求解所有实例，报告顺序与输入一致。
// ctx 取消后尚未开始的实例记录为失败，正在运行的实例返回已知最优结果。
func (r *Runner) Run(ctx context.Context, problems []*dataset.Problem) []*Report {
	reports := make([]*Report, len(problems))
	p := pool.New().WithMaxGoroutines(r.workers)

	for i, prob := range problems {
		p.Go(func() {
			reports[i] = r.Solve(ctx, prob)
		})
	}
	p.Wait()

	return reports
}

// Solve 求解单个实例并附带基线结果；panic 被捕获为失败报告。
func (r *Runner) Solve(ctx context.Context, prob *dataset.Problem) *Report {
	strategy := string(r.solver.Strategy())
	inst := prob.Instance
	if inst == nil {
		rep := &Report{RunID: idgen.RunID()}
		return r.fail(ctx, rep, strategy, fmt.Errorf("%w: missing instance", xerrors.ErrInvalidInstance))
	}
	rep := &Report{RunID: idgen.RunID(), Instance: inst.Name, Optimal: prob.Optimal}

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, rep, strategy, err)
	}

	var pc panics.Catcher
	var (
		res *binpacking.Result
		err error
	)
	pc.Try(func() {
		solveCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			solveCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		res, err = r.solver.Solve(solveCtx, inst)
	})
	if rec := pc.Recovered(); rec != nil {
		err = fmt.Errorf("%w: %s: %w", ErrTaskPanic, inst.Name, rec.AsError())
	}
	if err != nil {
		return r.fail(ctx, rep, strategy, err)
	}

	d := res.Diagnostics
	rep.Diagnostics = d
	rep.Integral = res.Integral
	rep.Warnings = d.WarningMessages()

	for _, h := range r.heuristics {
		var (
			bins []*binpacking.Bin
			herr error
		)
		var hc panics.Catcher
		hc.Try(func() {
			bins, herr = binpacking.RunHeuristic(inst, h, r.logger)
		})
		if rec := hc.Recovered(); rec != nil {
			herr = fmt.Errorf("%w: %s baseline %s: %w", ErrTaskPanic, inst.Name, h, rec.AsError())
		}
		if herr != nil {
			r.logger.WarnContext(ctx, "baseline heuristic failed", "instance", inst.Name, "heuristic", h, "error", herr)
			rep.Warnings = append(rep.Warnings, herr.Error())
			continue
		}
		rep.Baselines = append(rep.Baselines, Baseline{
			Heuristic:  h,
			Bins:       len(bins),
			GapPercent: binpacking.Gap(len(bins), d.LowerBound),
		})
	}

	missing := 0
	for _, sf := range d.Shortfalls {
		missing += sf.Missing()
	}
	outcome := metrics.OutcomeConverged
	switch {
	case missing > 0:
		outcome = metrics.OutcomeShortfall
		r.stats.Shortfalls.Add(1)
	case !d.Converged:
		outcome = metrics.OutcomeExhausted
	}
	r.metrics.Observe(strategy, outcome, d.Iterations, d.Patterns, d.GapPercent, missing, d.Duration)
	r.stats.Solved.Add(1)

	return rep
}

func (r *Runner) fail(ctx context.Context, rep *Report, strategy string, err error) *Report {
	rep.Err = err
	rep.Error = err.Error()
	r.stats.Failed.Add(1)
	r.metrics.Failed(strategy)

	level := slog.LevelError
	if xe, ok := xerrors.FromError(err); ok && xe.HTTPStatus() < 500 {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "instance skipped", "run_id", rep.RunID, "instance", rep.Instance, "error", err)
	return rep
}
