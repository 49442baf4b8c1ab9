package binpacking

import (
	"math"
	"math/rand/v2"
)

const (
	minGranularity   = 10
	minGlueThreshold = 10
)

// GlueRounder 离散化权重、粘合小物品、再随机取整。
type GlueRounder struct{}

// Name 策略名称。
func (*GlueRounder) Name() Strategy { return StrategyGlue }

// Granularity 离散化粒度 q = max(10, ⌈(ln n)³⌉)。
func Granularity(n int) int {
	if n < 2 {
		return minGranularity
	}
	l := math.Log(float64(n))
	return max(minGranularity, int(math.Ceil(l*l*l)))
}

// GlueThreshold 粘合块大小 max(10, ⌊w·q/100⌋)。
func GlueThreshold(capacity float64, q int) int {
	return max(minGlueThreshold, int(math.Floor(capacity*float64(q)/100)))
}

// Round 依次执行三个阶段，每个阶段完整结束后才进入下一阶段。
func (g *GlueRounder) Round(frac *Fractional, rng *rand.Rand) *Integral {
	inst := frac.Instance
	patterns := clonePatterns(frac.Patterns)
	q := Granularity(len(inst.Items))

	weights := Discretize(frac.Weights, q)

	arena := NewGlueArena(inst)
	Glue(inst, patterns, weights, GlueThreshold(inst.Capacity, q), arena)

	counts := make([]int, len(weights))
	for j, x := range weights {
		counts[j] = roundFrac(rng, x, 1e-9)
	}

	return &Integral{Strategy: StrategyGlue, Patterns: patterns, Counts: counts, Arena: arena}
}

// Discretize 把每个权重替换为最接近的 1/q 整数倍。
func Discretize(weights []float64, q int) []float64 {
	out := make([]float64, len(weights))
	fq := float64(q)
	for j, x := range weights {
		out[j] = math.Round(x*fq) / fq
	}
	return out
}

// Glue 在权重非零的模式中，把小于半箱且件数超过阈值的物品按 threshold 件一块粘合。
// 粘合后的尺寸必须仍能装入箱子；合成物品登记到 arena 并只出现在原模式中。
func Glue(inst *Instance, patterns []Pattern, weights []float64, threshold int, arena *GlueArena) {
	if threshold < 2 {
		return
	}
	half := inst.Capacity / 2
	limit := inst.Capacity + inst.tolerance()

	for j := range patterns {
		if weights[j] <= 0 {
			continue
		}
		p := patterns[j]
		for _, id := range p.IDs() {
			size, ok := inst.Size(id)
			if !ok || size >= half {
				continue
			}
			count := p.Items[id]
			glued := float64(threshold) * size
			if count <= threshold || glued > limit {
				continue
			}
			blocks := count / threshold
			gid := arena.Add(id, threshold, glued, j)
			p.Items[gid] = blocks
			if rest := count - blocks*threshold; rest > 0 {
				p.Items[id] = rest
			} else {
				delete(p.Items, id)
			}
		}
	}
}
