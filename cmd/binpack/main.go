// Command binpack 批量求解装箱实例并打印诊断摘要，或以 -serve 启动 HTTP 服务。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/wyfcoding/binpack/api"
	"github.com/wyfcoding/binpack/app"
	"github.com/wyfcoding/binpack/batch"
	"github.com/wyfcoding/binpack/config"
	"github.com/wyfcoding/binpack/dataset"
	"github.com/wyfcoding/binpack/idgen"
	"github.com/wyfcoding/binpack/logging"
	"github.com/wyfcoding/binpack/metrics"
	"github.com/wyfcoding/binpack/server"
	"github.com/wyfcoding/binpack/tracing"
)

type cliFlags struct {
	config     string
	watch      bool
	serve      bool
	jsonOut    bool
	benchmark  []int
	random     []int
	capacity   float64
	genSeed    uint64
	strategy   string
	seed       uint64
	trials     int
	repair     bool
	backend    string
	heuristics []string
	workers    int
	logLevel   string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "binpack:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("binpack", pflag.ContinueOnError)
	var f cliFlags
	fs.StringVarP(&f.config, "config", "c", "", "TOML 配置文件")
	fs.BoolVar(&f.watch, "watch", false, "监听配置文件变化（仅 -serve）")
	fs.BoolVar(&f.serve, "serve", false, "启动 HTTP 服务")
	fs.BoolVar(&f.jsonOut, "json", false, "以 JSON 输出完整报告")
	fs.IntSliceVar(&f.benchmark, "benchmark", nil, "生成基准实例，取值为件数，可重复")
	fs.IntSliceVar(&f.random, "random", nil, "生成随机实例，取值为件数，可重复")
	fs.Float64Var(&f.capacity, "capacity", 100, "生成实例的箱子容量")
	fs.Uint64Var(&f.genSeed, "gen-seed", 1, "随机实例的种子")
	fs.StringVarP(&f.strategy, "strategy", "s", "", "取整策略 glue|spectrum")
	fs.Uint64Var(&f.seed, "seed", 0, "取整随机种子")
	fs.IntVar(&f.trials, "trials", 0, "取整试验次数")
	fs.BoolVar(&f.repair, "repair", false, "用 FFD 补齐未覆盖的物品")
	fs.StringVar(&f.backend, "lp", "", "LP 后端 simplex|gonum")
	fs.StringSliceVar(&f.heuristics, "heuristics", nil, "同时运行的基线启发式，如 ffd,bfd")
	fs.IntVarP(&f.workers, "workers", "w", -1, "并发求解数，0 为 GOMAXPROCS")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: binpack [flags] [instance files or FSU dirs...]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.Default()
	if f.config != "" {
		loaded, _, err := config.Load(f.config, f.watch && f.serve)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlags(fs, &f, cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := newLogger(cfg, f.serve)
	if err := idgen.Init(cfg.Snowflake); err != nil {
		logger.Warn("run id generator unavailable, falling back to random ids", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if f.serve {
		return serve(ctx, cfg, logger)
	}
	return solve(ctx, cfg, &f, fs.Args(), out, logger)
}

// newLogger 服务模式按配置输出；批量模式未配置日志文件时写 stderr，stdout 留给报告。
func newLogger(cfg *config.Config, serve bool) *slog.Logger {
	if !serve && cfg.Log.File == "" {
		logging.SetLevel(cfg.Log.Level)
		l := logging.NewWithWriter(os.Stderr, cfg.Server.Name, "cli").Logger
		slog.SetDefault(l)
		return l
	}
	return logging.InitLogger(logging.Config{
		Service:    cfg.Server.Name,
		Module:     "server",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Console:    cfg.Log.Console,
	}).Logger
}

// applyFlags 仅覆盖命令行显式给出的参数。
func applyFlags(fs *pflag.FlagSet, f *cliFlags, cfg *config.Config) {
	fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "strategy":
			cfg.Rounding.Strategy = f.strategy
		case "seed":
			cfg.Rounding.Seed = f.seed
		case "trials":
			cfg.Rounding.Trials = f.trials
		case "repair":
			cfg.Rounding.Repair = f.repair
		case "lp":
			cfg.Solver.LPBackend = f.backend
		case "heuristics":
			cfg.Batch.Heuristics = f.heuristics
		case "workers":
			cfg.Batch.Workers = f.workers
		case "log-level":
			cfg.Log.Level = f.logLevel
		}
	})
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics(cfg.Server.Name)
	m.RegisterBuildInfo(cfg.Server.Name, cfg.Version)

	h, err := api.NewHandler(cfg, metrics.NewSolverMetrics(m), logger)
	if err != nil {
		return errors.Join(err, shutdownTracer(context.Background()))
	}
	srv := server.NewGinServer(api.NewRouter(cfg, h, m, logger), cfg.Server, logger)
	config.RegisterReloadHook(func(next *config.Config) {
		_ = h.Reload(next)
	})

	config.PrintWithMask(cfg)
	return app.New(cfg.Server.Name, logger,
		app.WithServer(srv),
		app.WithHook(app.Hook{
			Name: "readiness",
			OnStart: func(ctx context.Context) error {
				context.AfterFunc(ctx, func() { h.SetReady(false) })
				return nil
			},
		}),
		app.WithCleanup("tracer", shutdownTracer),
	).Run(ctx)
}

func solve(ctx context.Context, cfg *config.Config, f *cliFlags, paths []string, out io.Writer, logger *slog.Logger) error {
	problems, err := collect(f, paths)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		return fmt.Errorf("no instances: pass files, FSU directories, --benchmark or --random")
	}

	runner, err := batch.FromConfig(cfg, nil, logger)
	if err != nil {
		return err
	}

	done := logging.LogDuration(ctx, logger, "batch", "instances", len(problems))
	reports := runner.Run(ctx, problems)
	done()

	if f.jsonOut {
		if err := dataset.WriteJSON(out, reports); err != nil {
			return err
		}
	} else {
		printSummary(out, reports)
	}

	if n := runner.Stats().Failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d instances failed", n, len(reports))
	}
	return nil
}

func collect(f *cliFlags, paths []string) ([]*dataset.Problem, error) {
	var problems []*dataset.Problem
	for _, p := range paths {
		ps, err := dataset.Load(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		problems = append(problems, ps...)
	}
	for _, n := range f.benchmark {
		problems = append(problems, &dataset.Problem{Instance: dataset.Benchmark(n, f.capacity)})
	}
	for i, n := range f.random {
		problems = append(problems, &dataset.Problem{Instance: dataset.Random(n, f.capacity, f.genSeed+uint64(i))})
	}
	return problems, nil
}

func printSummary(out io.Writer, reports []*batch.Report) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTANCE\tSTATE\tITER\tPATTERNS\tLP\tLB\tBINS\tOPT\tGAP%\tBASELINES\tNOTES")
	for _, r := range reports {
		if r.Failed() {
			fmt.Fprintf(tw, "%s\tfailed\t-\t-\t-\t-\t-\t%s\t-\t-\t%s\n", r.Instance, optimal(r.Optimal), r.Error)
			continue
		}
		d := r.Diagnostics
		base := make([]string, 0, len(r.Baselines))
		for _, b := range r.Baselines {
			base = append(base, fmt.Sprintf("%s=%d", b.Heuristic, b.Bins))
		}
		notes := ""
		if len(r.Warnings) > 0 {
			notes = fmt.Sprintf("%d warning(s)", len(r.Warnings))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.3f\t%d\t%d\t%s\t%.2f\t%s\t%s\n",
			r.Instance, d.State, d.Iterations, d.Patterns, d.LPObjective, d.LowerBound,
			d.BinsUsed, optimal(r.Optimal), d.GapPercent, strings.Join(base, " "), notes)
	}
	tw.Flush()
}

func optimal(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprint(n)
}
