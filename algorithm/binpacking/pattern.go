package binpacking

import (
	"maps"
	"slices"
)

// Pattern 一种装箱方案（LP 的一列）：物品 ID → 件数。
// 进入模式集合后不再修改，只会被赋予新的权重。
type Pattern struct {
	Items map[int]int `json:"items"`
	Value float64     `json:"value,omitempty"` // 定价时的对偶价值
}

// NewPattern 创建空模式。
func NewPattern() Pattern {
	return Pattern{Items: make(map[int]int)}
}

// IDs 返回升序的物品 ID，保证遍历顺序确定。
func (p Pattern) IDs() []int {
	return slices.Sorted(maps.Keys(p.Items))
}

// Empty 模式中没有任何物品。
func (p Pattern) Empty() bool {
	for _, c := range p.Items {
		if c > 0 {
			return false
		}
	}
	return true
}

// Clone 深拷贝。
func (p Pattern) Clone() Pattern {
	return Pattern{Items: maps.Clone(p.Items), Value: p.Value}
}

// Equal 两个模式的件数完全相同。
func (p Pattern) Equal(o Pattern) bool {
	return maps.Equal(p.Items, o.Items)
}

// Load 模式的总装载量；sizeOf 返回 false 的 ID 视为不可装载。
func (p Pattern) Load(sizeOf func(id int) (float64, bool)) (float64, bool) {
	var load float64
	for _, id := range p.IDs() {
		size, ok := sizeOf(id)
		if !ok {
			return 0, false
		}
		load += size * float64(p.Items[id])
	}
	return load, true
}

// PatternFeasible 检查 Σ count·size <= capacity + ε。
func PatternFeasible(p Pattern, inst *Instance) bool {
	load, ok := p.Load(inst.Size)
	if !ok {
		return false
	}
	return load <= inst.Capacity+inst.tolerance()
}

// InitialPatterns 为每种物品生成一个单一物品模式。
// dense 为 false 时每个模式只放一件；为 true 时放入一箱能装下的最多件数（不超过需求）。
func InitialPatterns(inst *Instance, dense bool) []Pattern {
	patterns := make([]Pattern, 0, len(inst.Items))
	for _, it := range inst.Items {
		count := 1
		if dense {
			fit := int((inst.Capacity + inst.tolerance()) / it.Size)
			count = max(1, min(fit, it.Demand))
		}
		p := NewPattern()
		p.Items[it.ID] = count
		patterns = append(patterns, p)
	}
	return patterns
}

func clonePatterns(ps []Pattern) []Pattern {
	out := make([]Pattern, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}
