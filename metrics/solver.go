package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 求解结果标签。
const (
	OutcomeConverged = "converged"
	OutcomeExhausted = "exhausted"
	OutcomeShortfall = "shortfall"
	OutcomeFailed    = "failed"
)

// SolverMetrics 列生成与取整的指标。
type SolverMetrics struct {
	Runs       *prometheus.CounterVec   // strategy, outcome
	Iterations *prometheus.HistogramVec // strategy
	Patterns   *prometheus.HistogramVec // strategy
	GapPercent *prometheus.HistogramVec // strategy
	Shortfalls *prometheus.CounterVec   // strategy
	Duration   *prometheus.HistogramVec // strategy
}

// NewSolverMetrics 在 m 的注册表中注册求解器指标。
func NewSolverMetrics(m *Metrics) *SolverMetrics {
	return &SolverMetrics{
		Runs: m.NewCounterVec(prometheus.CounterOpts{
			Name: "binpack_solve_runs_total",
			Help: "Solved instances by rounding strategy and outcome",
		}, []string{"strategy", "outcome"}),
		Iterations: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "binpack_colgen_iterations",
			Help:    "Column generation iterations per instance",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"strategy"}),
		Patterns: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "binpack_colgen_patterns",
			Help:    "Size of the final pattern set per instance",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"strategy"}),
		GapPercent: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "binpack_gap_percent",
			Help:    "Bins used above the volume lower bound, in percent",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}, []string{"strategy"}),
		Shortfalls: m.NewCounterVec(prometheus.CounterOpts{
			Name: "binpack_rounding_shortfall_copies_total",
			Help: "Item copies left uncovered by rounding before repair",
		}, []string{"strategy"}),
		Duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "binpack_solve_duration_seconds",
			Help:    "Wall time of a full solve",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"strategy"}),
	}
}

// Observe 记录一次成功求解。
func (s *SolverMetrics) Observe(strategy, outcome string, iterations, patterns int, gap float64, shortfall int, d time.Duration) {
	if s == nil {
		return
	}
	s.Runs.WithLabelValues(strategy, outcome).Inc()
	s.Iterations.WithLabelValues(strategy).Observe(float64(iterations))
	s.Patterns.WithLabelValues(strategy).Observe(float64(patterns))
	s.GapPercent.WithLabelValues(strategy).Observe(gap)
	if shortfall > 0 {
		s.Shortfalls.WithLabelValues(strategy).Add(float64(shortfall))
	}
	s.Duration.WithLabelValues(strategy).Observe(d.Seconds())
}

// Failed 记录一次失败求解。
func (s *SolverMetrics) Failed(strategy string) {
	if s == nil {
		return
	}
	s.Runs.WithLabelValues(strategy, OutcomeFailed).Inc()
}
