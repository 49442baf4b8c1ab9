package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/wyfcoding/binpack/algorithm/binpacking"
)

// Benchmark 确定性的三段式基准实例：大、中、小物品各约三分之一种类。
func Benchmark(n int, capacity float64) *binpacking.Instance {
	inst := &binpacking.Instance{Name: fmt.Sprintf("benchmark_%d", n), Capacity: capacity}
	third := n / 3
	for i := range n {
		step := float64(i%10) / 10
		var size float64
		var demand int
		switch {
		case i < third:
			size = capacity * (0.4 + 0.1*step)
			demand = 100 + (i*13)%200
		case i < 2*third:
			size = capacity * (0.2 + 0.15*step)
			demand = 200 + (i*17)%300
		default:
			size = capacity * (0.05 + 0.1*step)
			demand = 300 + (i*19)%400
		}
		inst.Items = append(inst.Items, binpacking.ItemType{ID: i + 1, Size: round2(size), Demand: demand})
	}
	return inst
}

// Random 随机实例：尺寸均匀分布于 [5, 0.4·capacity)，需求均匀分布于 [50, 500]。
func Random(n int, capacity float64, seed uint64) *binpacking.Instance {
	rng := rand.New(rand.NewPCG(seed, 0x62696e7061636b))
	inst := &binpacking.Instance{Name: fmt.Sprintf("random_%d_%d", n, seed), Capacity: capacity}
	hi := 0.4 * capacity
	for i := range n {
		size := 5 + rng.Float64()*(hi-5)
		inst.Items = append(inst.Items, binpacking.ItemType{
			ID:     i + 1,
			Size:   round2(size),
			Demand: 50 + rng.IntN(451),
		})
	}
	return inst
}

// round2 保留两位小数，使定价网格在两位精度下精确。
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
