package binpacking

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/wyfcoding/binpack/xerrors"
)

// Strategy 取整策略标签。
type Strategy string

const (
	// StrategyGlue 离散化、分组粘合、随机取整。
	StrategyGlue Strategy = "glue"
	// StrategySpectrum 重建容器、全谱随机取整。
	StrategySpectrum Strategy = "spectrum"
)

// ParseStrategy 解析策略名称（大小写不敏感）。
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyGlue, "discretize-glue", "a":
		return StrategyGlue, nil
	case StrategySpectrum, "rebuild-spectrum", "b":
		return StrategySpectrum, nil
	default:
		return "", fmt.Errorf("%w: %q", xerrors.ErrUnknownStrategy, s)
	}
}

// Fractional 列生成输出的分数解，取整流水线独占其模式副本。
type Fractional struct {
	Instance *Instance
	Patterns []Pattern
	Weights  []float64
}

// Rounder 把分数解转为整数装箱方案。rng 由调用方按试验播种。
type Rounder interface {
	Name() Strategy
	Round(frac *Fractional, rng *rand.Rand) *Integral
}

// NewRounder 按策略创建取整器。
func NewRounder(s Strategy, epsilon float64) (Rounder, error) {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	switch s {
	case StrategyGlue:
		return &GlueRounder{}, nil
	case StrategySpectrum:
		return &SpectrumRounder{Epsilon: epsilon}, nil
	default:
		return nil, fmt.Errorf("%w: %q", xerrors.ErrUnknownStrategy, s)
	}
}

// GluedItem 粘合产生的合成物品，仅在其所属模式中出现。
type GluedItem struct {
	ID      int     `json:"id"`
	Source  int     `json:"source"`  // 原始物品 ID
	Block   int     `json:"block"`   // 每个粘合物品代表的原始件数
	Size    float64 `json:"size"`
	Pattern int     `json:"pattern"` // 产生它的模式下标
}

// GlueArena 单次取整运行内的合成物品表，ID 从实例最大 ID 之后递增分配。
type GlueArena struct {
	next  int
	items map[int]GluedItem
	order []int
}

// NewGlueArena 创建以 inst 最大 ID 为基准的空表。
func NewGlueArena(inst *Instance) *GlueArena {
	maxID := 0
	for i, it := range inst.Items {
		if i == 0 || it.ID > maxID {
			maxID = it.ID
		}
	}
	return &GlueArena{next: maxID + 1, items: make(map[int]GluedItem)}
}

// Add 登记一个合成物品并返回其新 ID。
func (a *GlueArena) Add(source, block int, size float64, pattern int) int {
	id := a.next
	a.next++
	a.items[id] = GluedItem{ID: id, Source: source, Block: block, Size: size, Pattern: pattern}
	a.order = append(a.order, id)
	return id
}

// Get 按 ID 查找合成物品。
func (a *GlueArena) Get(id int) (GluedItem, bool) {
	if a == nil {
		return GluedItem{}, false
	}
	g, ok := a.items[id]
	return g, ok
}

// Items 按创建顺序返回全部合成物品。
func (a *GlueArena) Items() []GluedItem {
	if a == nil {
		return nil
	}
	out := make([]GluedItem, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.items[id])
	}
	return out
}

// Len 合成物品数量。
func (a *GlueArena) Len() int {
	if a == nil {
		return 0
	}
	return len(a.order)
}

// Integral 整数装箱方案：Counts[j] 为模式 j 的使用箱数。
type Integral struct {
	Strategy Strategy   `json:"strategy"`
	Patterns []Pattern  `json:"patterns"`
	Counts   []int      `json:"counts"`
	Arena    *GlueArena `json:"-"`
}

// Bins 使用的箱子总数。
func (r *Integral) Bins() int {
	var n int
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Used 返回计数为正的模式及其计数。
func (r *Integral) Used() ([]Pattern, []int) {
	var ps []Pattern
	var cs []int
	for j, c := range r.Counts {
		if c > 0 {
			ps = append(ps, r.Patterns[j])
			cs = append(cs, c)
		}
	}
	return ps, cs
}

// Coverage 每种原始物品被装入的件数，合成物品按块大小展开。
func (r *Integral) Coverage() map[int]int {
	cov := make(map[int]int)
	for j, p := range r.Patterns {
		c := r.Counts[j]
		if c == 0 {
			continue
		}
		for _, id := range p.IDs() {
			n := p.Items[id]
			if g, ok := r.Arena.Get(id); ok {
				cov[g.Source] += c * n * g.Block
				continue
			}
			cov[id] += c * n
		}
	}
	return cov
}

// Shortfall 某种物品的覆盖缺口。
type Shortfall struct {
	ID      int `json:"id"`
	Demand  int `json:"demand"`
	Covered int `json:"covered"`
}

// Missing 缺少的件数。
func (s Shortfall) Missing() int {
	return s.Demand - s.Covered
}

// Shortfalls 覆盖不足需求的物品，按实例物品顺序返回。
func (r *Integral) Shortfalls(inst *Instance) []Shortfall {
	cov := r.Coverage()
	var out []Shortfall
	for _, it := range inst.Items {
		if got := cov[it.ID]; got < it.Demand {
			out = append(out, Shortfall{ID: it.ID, Demand: it.Demand, Covered: got})
		}
	}
	return out
}

// Feasible 所有需求都已覆盖。
func (r *Integral) Feasible(inst *Instance) bool {
	return len(r.Shortfalls(inst)) == 0
}

func missingCopies(sf []Shortfall) int {
	var n int
	for _, s := range sf {
		n += s.Missing()
	}
	return n
}

// bernoulli 以概率 p 返回 1。
func bernoulli(rng *rand.Rand, p float64) int {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

// roundFrac 整数部分保留，小数部分按伯努利试验取整。
func roundFrac(rng *rand.Rand, x float64, eps float64) int {
	if x <= eps {
		return 0
	}
	whole := math.Floor(x + eps)
	frac := x - whole
	n := int(whole)
	if frac > eps {
		n += bernoulli(rng, frac)
	}
	return n
}
