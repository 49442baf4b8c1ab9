package binpacking

import (
	"math"
	"math/rand/v2"
)

// SpectrumRounder 按尺寸等级截断模式，再以共享扰动幅度随机取整。
type SpectrumRounder struct {
	Epsilon float64
}

// Name 策略名称。
func (*SpectrumRounder) Name() Strategy { return StrategySpectrum }

// SizeClass 尺寸等级：1 为大于半箱，2 为 (w/6, w/2]，3 为其余。
func SizeClass(size, capacity float64) int {
	switch {
	case size > capacity/2:
		return 1
	case size > capacity/6:
		return 2
	default:
		return 3
	}
}

// ClassCap 等级 σ 的单物品件数上限 ⌈10·σ^(-1/4)⌉。
func ClassCap(class int) int {
	return int(math.Ceil(10 * math.Pow(float64(class), -0.25)))
}

// Perturbation 扰动幅度 λ = 1/√ln(max(2, P))。
func Perturbation(numPatterns int) float64 {
	return 1 / math.Sqrt(math.Log(float64(max(2, numPatterns))))
}

// Round 两个阶段：重建容器后全谱取整。
func (s *SpectrumRounder) Round(frac *Fractional, rng *rand.Rand) *Integral {
	inst := frac.Instance
	patterns := clonePatterns(frac.Patterns)
	Rebuild(inst, patterns, frac.Weights)

	eps := s.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	lambda := Perturbation(len(patterns))

	counts := make([]int, len(frac.Weights))
	for j, x := range frac.Weights {
		switch {
		case x <= eps:
			counts[j] = 0
		case x >= 1-eps:
			counts[j] = int(math.Ceil(x - eps))
		default:
			p := x + (rng.Float64()-0.5)*lambda
			p = math.Min(1, math.Max(0, p))
			counts[j] = bernoulli(rng, p)
		}
	}

	return &Integral{Strategy: StrategySpectrum, Patterns: patterns, Counts: counts}
}

// Rebuild 对权重非零的模式，按尺寸等级截断单一物品的件数。
func Rebuild(inst *Instance, patterns []Pattern, weights []float64) {
	for j := range patterns {
		if weights[j] <= 0 {
			continue
		}
		p := patterns[j]
		for _, id := range p.IDs() {
			size, ok := inst.Size(id)
			if !ok {
				continue
			}
			if limit := ClassCap(SizeClass(size, inst.Capacity)); p.Items[id] > limit {
				p.Items[id] = limit
			}
		}
	}
}
