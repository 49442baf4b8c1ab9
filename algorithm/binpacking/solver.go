package binpacking

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/wyfcoding/binpack/algorithm/lp"
	"github.com/wyfcoding/binpack/tracing"
	"github.com/wyfcoding/binpack/xerrors"
)

const (
	// DefaultSeed 未指定种子时的随机源种子。
	DefaultSeed uint64 = 1
	// DefaultTrials 默认取整试验次数。
	DefaultTrials = 1
)

type options struct {
	lpSolver      lp.Solver
	logger        *slog.Logger
	maxIterations int
	epsilon       float64
	gridDecimals  int
	maxGridUnits  int64
	denseSeed     bool
	strategy      Strategy
	seed          uint64
	trials        int
	repair        bool
}

// Option 求解器选项。
type Option func(*options)

// WithLPSolver 指定主问题 LP 后端。
func WithLPSolver(s lp.Solver) Option {
	return func(o *options) { o.lpSolver = s }
}

// WithLogger 指定日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxIterations 列生成迭代上限。
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithEpsilon 容差，同时用于容量判定与约简成本判定。
func WithEpsilon(eps float64) Option {
	return func(o *options) { o.epsilon = eps }
}

// WithGrid 定价网格的十进制精度（AutoGridDecimals 为自动）与状态数上限。
func WithGrid(decimals int, maxUnits int64) Option {
	return func(o *options) {
		o.gridDecimals = decimals
		o.maxGridUnits = maxUnits
	}
}

// WithDenseSeed 初始模式装入一箱能容纳的最多件数。
func WithDenseSeed(dense bool) Option {
	return func(o *options) { o.denseSeed = dense }
}

// WithStrategy 取整策略。
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithSeed 随机源种子。
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithTrials 取整试验次数，保留最好的一次。
func WithTrials(n int) Option {
	return func(o *options) { o.trials = n }
}

// WithRepair 用 FFD 补齐取整后的覆盖缺口。
func WithRepair(on bool) Option {
	return func(o *options) { o.repair = on }
}

func defaultOptions() *options {
	return &options{
		lpSolver:      lp.Simplex{},
		logger:        slog.Default(),
		maxIterations: DefaultMaxIterations,
		epsilon:       DefaultEpsilon,
		gridDecimals:  AutoGridDecimals,
		maxGridUnits:  DefaultMaxGridUnits,
		strategy:      StrategyGlue,
		seed:          DefaultSeed,
		trials:        DefaultTrials,
	}
}

// Diagnostics 单个实例的求解摘要。
type Diagnostics struct {
	Instance    string        `json:"instance"`
	Items       int           `json:"items"`
	ItemTypes   int           `json:"item_types"`
	Iterations  int           `json:"iterations"`
	Patterns    int           `json:"patterns"`
	State       State         `json:"state"`
	Converged   bool          `json:"converged"`
	LPObjective float64       `json:"lp_objective"`
	LPBound     int           `json:"lp_bound"`
	LowerBound  int           `json:"lower_bound"`
	BinsUsed    int           `json:"bins_used"`
	GapPercent  float64       `json:"gap_percent"`
	Strategy    Strategy      `json:"strategy"`
	Seed        uint64        `json:"seed"`
	Trial       int           `json:"trial"`
	GluedItems  int           `json:"glued_items,omitempty"`
	Shortfalls  []Shortfall   `json:"shortfalls,omitempty"`
	Repaired    int           `json:"repaired_bins,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Warnings    []error       `json:"-"`
}

// WarningMessages 以字符串返回告警。
func (d *Diagnostics) WarningMessages() []string {
	out := make([]string, 0, len(d.Warnings))
	for _, w := range d.Warnings {
		out = append(out, w.Error())
	}
	return out
}

// Result 一次完整求解的输出。
type Result struct {
	Instance    *Instance    `json:"-"`
	Generation  *Generation  `json:"-"`
	Integral    *Integral    `json:"integral"`
	Diagnostics *Diagnostics `json:"diagnostics"`
}

// Solver 求解门面：列生成、取整、可选修补、诊断。
type Solver struct {
	opts    *options
	gen     *Generator
	rounder Rounder
}

// New 创建求解器；未知策略或非法参数返回错误。
func New(opts ...Option) (*Solver, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.maxIterations <= 0 {
		return nil, fmt.Errorf("%w: max iterations %d", xerrors.ErrInvalidConfig, o.maxIterations)
	}
	if o.epsilon <= 0 || o.epsilon >= 1 {
		return nil, fmt.Errorf("%w: epsilon %g", xerrors.ErrInvalidConfig, o.epsilon)
	}
	if o.trials <= 0 {
		return nil, fmt.Errorf("%w: trials %d", xerrors.ErrInvalidConfig, o.trials)
	}
	if o.lpSolver == nil {
		o.lpSolver = lp.Simplex{}
	}
	r, err := NewRounder(o.strategy, o.epsilon)
	if err != nil {
		return nil, err
	}
	return &Solver{opts: o, gen: NewGenerator(o), rounder: r}, nil
}

// Strategy 当前取整策略。
func (s *Solver) Strategy() Strategy {
	return s.rounder.Name()
}

// Solve 对单个实例求解。LP 失败与非法实例返回错误；未收敛与覆盖缺口记录在诊断告警中。
func (s *Solver) Solve(ctx context.Context, inst *Instance) (*Result, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "binpacking.solve")
	defer span.End()

	gen, err := s.gen.Generate(ctx, inst)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	integral, trial := s.round(ctx, gen.Fractional(inst))

	diag := &Diagnostics{
		Instance:    inst.Name,
		Items:       inst.TotalItems(),
		ItemTypes:   len(inst.Items),
		Iterations:  gen.Iterations,
		Patterns:    len(gen.Patterns),
		State:       gen.State,
		Converged:   gen.Converged(),
		LPObjective: gen.Objective,
		LPBound:     ceilTol(gen.Objective),
		LowerBound:  inst.LowerBound(),
		Strategy:    s.rounder.Name(),
		Seed:        s.opts.seed,
		Trial:       trial,
		GluedItems:  integral.Arena.Len(),
	}
	if gen.Err != nil {
		diag.Warnings = append(diag.Warnings, gen.Err)
	}

	if sf := integral.Shortfalls(inst); len(sf) > 0 {
		diag.Shortfalls = sf
		diag.Warnings = append(diag.Warnings, fmt.Errorf("%w: %s misses %d copies across %d item types",
			xerrors.ErrRoundingCoverageShortfall, inst.Name, missingCopies(sf), len(sf)))
		s.opts.logger.WarnContext(ctx, "rounding left demand uncovered",
			"instance", inst.Name, "item_types", len(sf), "copies", missingCopies(sf))

		if s.opts.repair {
			before := integral.Bins()
			integral = Repair(inst, integral, sf, s.opts.logger)
			diag.Repaired = integral.Bins() - before
		}
	}

	diag.BinsUsed = integral.Bins()
	diag.GapPercent = Gap(diag.BinsUsed, diag.LowerBound)
	diag.Duration = time.Since(start)

	tracing.AddTag(ctx, "bins", diag.BinsUsed)
	tracing.AddTag(ctx, "lower_bound", diag.LowerBound)

	s.opts.logger.InfoContext(ctx, "instance solved",
		"instance", inst.Name,
		"strategy", string(diag.Strategy),
		"iterations", diag.Iterations,
		"patterns", diag.Patterns,
		"bins", diag.BinsUsed,
		"lower_bound", diag.LowerBound,
		"gap_percent", diag.GapPercent,
		"duration", diag.Duration)

	return &Result{Instance: inst, Generation: gen, Integral: integral, Diagnostics: diag}, nil
}

// round 执行 trials 次取整，优先缺口件数最少，其次箱数最少，再次试验序号最小。
func (s *Solver) round(ctx context.Context, frac *Fractional) (*Integral, int) {
	var (
		best      *Integral
		bestTrial int
		bestMiss  int
	)
	for t := range s.opts.trials {
		rng := rand.New(rand.NewPCG(s.opts.seed, uint64(t)))
		r := s.rounder.Round(frac, rng)
		miss := missingCopies(r.Shortfalls(frac.Instance))

		s.opts.logger.DebugContext(ctx, "rounding trial",
			"instance", frac.Instance.Name, "trial", t, "bins", r.Bins(), "missing", miss)

		if best == nil || miss < bestMiss || (miss == bestMiss && r.Bins() < best.Bins()) {
			best, bestTrial, bestMiss = r, t, miss
		}
	}
	return best, bestTrial
}

// Repair 把缺少的物品用 FFD 装入新箱，每个新箱作为计数为 1 的模式追加。原方案不被修改。
func Repair(inst *Instance, r *Integral, shortfalls []Shortfall, logger *slog.Logger) *Integral {
	var missing []Item
	for _, sf := range shortfalls {
		size, _ := inst.Size(sf.ID)
		for range sf.Missing() {
			missing = append(missing, Item{Type: sf.ID, Size: size})
		}
	}

	out := &Integral{
		Strategy: r.Strategy,
		Patterns: clonePatterns(r.Patterns),
		Counts:   append([]int(nil), r.Counts...),
		Arena:    r.Arena,
	}
	packer := NewPacker(inst.Capacity, logger)
	for _, b := range packer.FirstFitDecreasing(missing) {
		p := NewPattern()
		for _, it := range b.Items {
			p.Items[it.Type]++
		}
		out.Patterns = append(out.Patterns, p)
		out.Counts = append(out.Counts, 1)
	}
	packer.logger.Debug("repaired rounding shortfall",
		"instance", inst.Name, "items_count", len(missing), "bins_added", out.Bins()-r.Bins())
	return out
}

// Gap 箱数相对下界的百分比差距。
func Gap(bins, lowerBound int) float64 {
	if lowerBound <= 0 {
		return 0
	}
	return math.Round(10000*float64(bins-lowerBound)/float64(lowerBound)) / 100
}
