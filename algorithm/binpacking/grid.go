package binpacking

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/binpack/xerrors"
)

const (
	// DefaultMaxGridUnits 定价网格状态数上限：物品种类数 × (容量单位 + 1)。
	DefaultMaxGridUnits int64 = 1 << 25
	// AutoGridDecimals 自动选择能精确表示全部尺寸的最小小数位数。
	AutoGridDecimals = -1

	maxGridDecimals = 9
)

// Grid 定价动态规划使用的整数网格。
// 尺寸乘以 10^Decimals 后向上取整，容量向下取整，
// 因此网格上可行的模式在实数意义下一定可行。
type Grid struct {
	Sizes    []int64 // 与 Instance.Items 顺序一致
	Capacity int64
	Decimals int
}

// NewGrid 按给定小数位数构造网格，decimals 为 AutoGridDecimals 时自动选择。
func NewGrid(inst *Instance, decimals int, maxUnits int64) (*Grid, error) {
	if maxUnits <= 0 {
		maxUnits = DefaultMaxGridUnits
	}
	if decimals == AutoGridDecimals {
		decimals = autoDecimals(inst, maxUnits)
	}
	if decimals < 0 || decimals > maxGridDecimals {
		return nil, fmt.Errorf("%w: grid decimals %d out of range [0, %d]", xerrors.ErrInvalidConfig, decimals, maxGridDecimals)
	}

	shift := int32(decimals)
	capacity := decimal.NewFromFloat(inst.Capacity).Shift(shift).Floor()
	cells := capacity.Add(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(int64(max(1, len(inst.Items)))))
	if cells.GreaterThan(decimal.NewFromInt(maxUnits)) {
		return nil, fmt.Errorf("%w: capacity %g at %d decimals needs %s cells (max %d)",
			xerrors.ErrGridTooLarge, inst.Capacity, decimals, cells.String(), maxUnits)
	}

	g := &Grid{
		Sizes:    make([]int64, len(inst.Items)),
		Capacity: capacity.IntPart(),
		Decimals: decimals,
	}
	for i, it := range inst.Items {
		g.Sizes[i] = max(1, decimal.NewFromFloat(it.Size).Shift(shift).Ceil().IntPart())
	}
	return g, nil
}

// autoDecimals 取容量与尺寸中最多的小数位数，再逐位降低直到状态数不超过上限。
func autoDecimals(inst *Instance, maxUnits int64) int {
	k := digits(inst.Capacity)
	for _, it := range inst.Items {
		k = max(k, digits(it.Size))
	}
	k = min(k, maxGridDecimals)

	n := decimal.NewFromInt(int64(max(1, len(inst.Items))))
	limit := decimal.NewFromInt(maxUnits)
	for ; k > 0; k-- {
		c := decimal.NewFromFloat(inst.Capacity).Shift(int32(k)).Floor().Add(decimal.NewFromInt(1))
		if !c.Mul(n).GreaterThan(limit) {
			break
		}
	}
	return k
}

// digits 十进制表示中的小数位数。
func digits(x float64) int {
	if exp := decimal.NewFromFloat(x).Exponent(); exp < 0 {
		return int(-exp)
	}
	return 0
}
