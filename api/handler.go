// Package api 暴露求解服务的 HTTP 接口。
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/binpack/algorithm/binpacking"
	"github.com/wyfcoding/binpack/batch"
	"github.com/wyfcoding/binpack/config"
	"github.com/wyfcoding/binpack/dataset"
	"github.com/wyfcoding/binpack/metrics"
	"github.com/wyfcoding/binpack/response"
	"github.com/wyfcoding/binpack/xerrors"
)

// MaxBatchSize 单次批量请求允许的实例数。
const MaxBatchSize = 64

// SolveOptions 单次请求覆盖的求解参数，零值沿用服务配置。
type SolveOptions struct {
	Strategy      string  `json:"strategy"`
	Seed          *uint64 `json:"seed"`
	Trials        int     `json:"trials"`
	Repair        *bool   `json:"repair"`
	MaxIterations int     `json:"max_iterations"`
	LPBackend     string  `json:"lp_backend"`
}

func (o *SolveOptions) empty() bool {
	return o == nil || *o == SolveOptions{}
}

// SolveRequest 求解请求。
type SolveRequest struct {
	Instance *binpacking.Instance `json:"instance" binding:"required"`
	Optimal  int                  `json:"optimal"  binding:"min=0"`
	Options  *SolveOptions        `json:"options"`
}

// HeuristicRequest 基线启发式请求，Heuristics 为空时运行全部。
type HeuristicRequest struct {
	Instance   *binpacking.Instance `json:"instance"   binding:"required"`
	Heuristics []string             `json:"heuristics"`
	Details    bool                 `json:"details"`
}

// HeuristicResult 单个启发式的结果。
type HeuristicResult struct {
	Heuristic  binpacking.Heuristic `json:"heuristic"`
	Bins       int                  `json:"bins"`
	GapPercent float64              `json:"gap_percent"`
	Packing    []*binpacking.Bin    `json:"packing,omitempty"`
}

// Handler 求解接口。
type Handler struct {
	cfg     atomic.Pointer[config.Config]
	runner  atomic.Pointer[batch.Runner]
	metrics *metrics.SolverMetrics
	logger  *slog.Logger
	ready   atomic.Bool
}

// NewHandler 按服务配置创建处理器，初始即就绪。
func NewHandler(cfg *config.Config, sm *metrics.SolverMetrics, logger *slog.Logger) (*Handler, error) {
	runner, err := batch.FromConfig(cfg, sm, logger)
	if err != nil {
		return nil, err
	}
	h := &Handler{metrics: sm, logger: logger}
	h.cfg.Store(cfg)
	h.runner.Store(runner)
	h.ready.Store(true)
	return h, nil
}

// Reload 按新配置重建求解器，进行中的请求继续使用旧实例。新配置非法时保持原状。
func (h *Handler) Reload(cfg *config.Config) error {
	runner, err := batch.FromConfig(cfg, h.metrics, h.logger)
	if err != nil {
		h.logger.Error("solver reload rejected", "error", err)
		return err
	}
	h.cfg.Store(cfg)
	h.runner.Store(runner)
	h.logger.Info("solver reloaded",
		"strategy", cfg.Rounding.Strategy,
		"lp_backend", cfg.Solver.LPBackend,
		"max_iterations", cfg.Solver.MaxIterations)
	return nil
}

// runnerFor 请求携带参数时基于服务配置构造一次性 Runner。
func (h *Handler) runnerFor(o *SolveOptions) (*batch.Runner, error) {
	if o.empty() {
		return h.runner.Load(), nil
	}

	cfg := *h.cfg.Load()
	if o.Strategy != "" {
		cfg.Rounding.Strategy = o.Strategy
	}
	if o.Seed != nil {
		cfg.Rounding.Seed = *o.Seed
	}
	if o.Trials > 0 {
		cfg.Rounding.Trials = o.Trials
	}
	if o.Repair != nil {
		cfg.Rounding.Repair = *o.Repair
	}
	if o.MaxIterations > 0 {
		cfg.Solver.MaxIterations = o.MaxIterations
	}
	if o.LPBackend != "" {
		cfg.Solver.LPBackend = o.LPBackend
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}
	return batch.FromConfig(&cfg, h.metrics, h.logger)
}

// SetReady 切换就绪状态，关闭期间返回 503。
func (h *Handler) SetReady(ok bool) {
	h.ready.Store(ok)
}

// Register 注册路由。
func (h *Handler) Register(r gin.IRouter, limit ...gin.HandlerFunc) {
	r.GET("/healthz", h.Health)
	r.GET("/readyz", h.Ready)

	v1 := r.Group("/v1")
	v1.GET("/stats", h.Stats)
	v1.POST("/heuristics", h.Heuristics)

	solve := v1.Group("", limit...)
	solve.POST("/solve", h.Solve)
	solve.POST("/batch", h.Batch)
}

// Health 存活探针。
func (h *Handler) Health(c *gin.Context) {
	response.SuccessWithRawData(c, gin.H{"status": "ok"})
}

// Ready 就绪探针。
func (h *Handler) Ready(c *gin.Context) {
	if !h.ready.Load() {
		response.ErrorWithStatus(c, http.StatusServiceUnavailable, "not ready", "server is shutting down")
		return
	}
	response.SuccessWithRawData(c, gin.H{"status": "ready"})
}

// Stats 累计求解统计。
func (h *Handler) Stats(c *gin.Context) {
	s := h.runner.Load().Stats()
	response.Success(c, gin.H{
		"solved":     s.Solved.Load(),
		"failed":     s.Failed.Load(),
		"shortfalls": s.Shortfalls.Load(),
	})
}

// Solve 求解单个实例。实例非法时返回 4xx，求解失败时返回 5xx。
func (h *Handler) Solve(c *gin.Context) {
	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	runner, err := h.runnerFor(req.Options)
	if err != nil {
		response.Error(c, err)
		return
	}

	rep := runner.Solve(c.Request.Context(), &dataset.Problem{Instance: req.Instance, Optimal: req.Optimal})
	if rep.Failed() {
		response.Error(c, rep.Err)
		return
	}
	response.Success(c, rep)
}

// Batch 并发求解多个实例，使用服务配置；单个失败记录在对应报告中，整体仍返回 200。
func (h *Handler) Batch(c *gin.Context) {
	var reqs []SolveRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if len(reqs) == 0 || len(reqs) > MaxBatchSize {
		response.Error(c, fmt.Errorf("%w: batch size %d not in [1, %d]", xerrors.ErrInvalidInput, len(reqs), MaxBatchSize))
		return
	}

	problems := make([]*dataset.Problem, len(reqs))
	for i, r := range reqs {
		if r.Instance == nil {
			response.Error(c, fmt.Errorf("%w: request %d missing instance", xerrors.ErrInvalidInput, i))
			return
		}
		problems[i] = &dataset.Problem{Instance: r.Instance, Optimal: r.Optimal}
	}

	response.Success(c, h.runner.Load().Run(c.Request.Context(), problems))
}

// Heuristics 运行基线启发式，不做列生成。
func (h *Handler) Heuristics(c *gin.Context) {
	var req HeuristicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if err := req.Instance.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	hs := binpacking.Heuristics
	if len(req.Heuristics) > 0 {
		hs = make([]binpacking.Heuristic, 0, len(req.Heuristics))
		for _, name := range req.Heuristics {
			hh, err := binpacking.ParseHeuristic(name)
			if err != nil {
				response.Error(c, err)
				return
			}
			hs = append(hs, hh)
		}
	}

	lb := req.Instance.LowerBound()
	out := make([]HeuristicResult, 0, len(hs))
	for _, hh := range hs {
		bins, err := binpacking.RunHeuristic(req.Instance, hh, h.logger)
		if err != nil {
			response.Error(c, err)
			return
		}
		res := HeuristicResult{Heuristic: hh, Bins: len(bins), GapPercent: binpacking.Gap(len(bins), lb)}
		if req.Details {
			res.Packing = bins
		}
		out = append(out, res)
	}
	response.Success(c, gin.H{"instance": req.Instance.Name, "lower_bound": lb, "results": out})
}

func bindError(err error) error {
	return fmt.Errorf("%w: %w", xerrors.ErrInvalidInput, err)
}
