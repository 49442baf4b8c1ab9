// Package binpacking 实现基于列生成的装箱问题近似求解：
// 分数松弛（Gilmore-Gomory 主问题 + 有界背包定价）以及两种取整流水线。
package binpacking

import (
	"fmt"
	"math"

	"github.com/wyfcoding/binpack/xerrors"
)

// DefaultEpsilon 容量比较与约简成本判定共用的相对容差。
const DefaultEpsilon = 1e-6

// MaxTotalItems 单个实例允许的物品总件数上限。基线启发式与修复会按件展开物品。
const MaxTotalItems = 1 << 22

// ItemType 描述一种物品：尺寸与需求量。创建后不可变。
type ItemType struct {
	ID     int     `json:"id"`
	Size   float64 `json:"size"`
	Demand int     `json:"demand"`
}

// Instance 装箱问题实例，创建后只读。
type Instance struct {
	Name     string     `json:"name"`
	Items    []ItemType `json:"items"`
	Capacity float64    `json:"capacity"`
}

// tolerance 容量判定的绝对容差。
func (in *Instance) tolerance() float64 {
	return DefaultEpsilon * in.Capacity
}

// Validate 检查实例是否合法；存在放不进箱子的物品时返回 ErrInfeasibleInstance。
func (in *Instance) Validate() error {
	if in.Capacity <= 0 || math.IsNaN(in.Capacity) || math.IsInf(in.Capacity, 0) {
		return fmt.Errorf("%w: %q capacity %g", xerrors.ErrInvalidInstance, in.Name, in.Capacity)
	}

	seen := make(map[int]struct{}, len(in.Items))
	total := 0
	for _, it := range in.Items {
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%w: %q duplicate item id %d", xerrors.ErrInvalidInstance, in.Name, it.ID)
		}
		seen[it.ID] = struct{}{}

		if it.Size <= 0 || math.IsNaN(it.Size) || it.Demand < 0 {
			return fmt.Errorf("%w: %q item %d size %g demand %d", xerrors.ErrInvalidInstance, in.Name, it.ID, it.Size, it.Demand)
		}
		if it.Size > in.Capacity+in.tolerance() {
			return fmt.Errorf("%w: %q item %d size %g exceeds capacity %g",
				xerrors.ErrInfeasibleInstance, in.Name, it.ID, it.Size, in.Capacity)
		}
		if it.Demand > MaxTotalItems-total {
			return fmt.Errorf("%w: %q total demand exceeds %d items", xerrors.ErrInvalidInstance, in.Name, MaxTotalItems)
		}
		total += it.Demand
	}
	return nil
}

// Index 返回物品 ID 到行下标的映射。
func (in *Instance) Index() map[int]int {
	idx := make(map[int]int, len(in.Items))
	for i, it := range in.Items {
		idx[it.ID] = i
	}
	return idx
}

// Size 按 ID 查询原始物品尺寸。
func (in *Instance) Size(id int) (float64, bool) {
	for _, it := range in.Items {
		if it.ID == id {
			return it.Size, true
		}
	}
	return 0, false
}

// Demands 以 float64 返回需求向量（与 Items 顺序一致）。
func (in *Instance) Demands() []float64 {
	d := make([]float64, len(in.Items))
	for i, it := range in.Items {
		d[i] = float64(it.Demand)
	}
	return d
}

// TotalVolume 所有物品的总体积。
func (in *Instance) TotalVolume() float64 {
	var v float64
	for _, it := range in.Items {
		v += it.Size * float64(it.Demand)
	}
	return v
}

// TotalItems 物品总件数。
func (in *Instance) TotalItems() int {
	var n int
	for _, it := range in.Items {
		n += it.Demand
	}
	return n
}

// LowerBound 理论下界 ⌈总体积 / 容量⌉。
func (in *Instance) LowerBound() int {
	if in.Capacity <= 0 {
		return 0
	}
	return ceilTol(in.TotalVolume() / in.Capacity)
}

// ceilTol 向上取整，吸收浮点误差。
func ceilTol(x float64) int {
	return int(math.Ceil(x - 1e-9))
}
