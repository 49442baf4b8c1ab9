package binpacking

// Price 求解定价子问题：有界（多重选择）背包。
//
//	maximize   Σ duals[i] · k_i
//	subject to Σ size_i · k_i <= capacity,  0 <= k_i <= demand_i
//
// dp[i][c] 表示只使用前 i 种物品、容量预算为 c 时的最大对偶价值，
// choice[i][c] 记录取得最优值的件数，用于回溯。
// 返回模式的 Value 为 dp[n][capacity]，其约简成本为 1 − Value。
func Price(inst *Instance, grid *Grid, duals []float64) Pattern {
	n := len(inst.Items)
	capacity := int(grid.Capacity)

	prev := make([]float64, capacity+1)
	cur := make([]float64, capacity+1)
	choice := make([][]int32, n+1)

	for i := 1; i <= n; i++ {
		choice[i] = make([]int32, capacity+1)
		size := int(grid.Sizes[i-1])
		demand := inst.Items[i-1].Demand
		dual := duals[i-1]

		// 对偶价格非正时，多放该物品不可能严格改进。
		if dual <= 0 || demand == 0 || size > capacity {
			copy(cur, prev)
			prev, cur = cur, prev
			continue
		}

		for c := 0; c <= capacity; c++ {
			best := prev[c]
			pick := 0
			maxCopies := min(c/size, demand)
			for k := 1; k <= maxCopies; k++ {
				v := prev[c-k*size] + float64(k)*dual
				if v > best {
					best = v
					pick = k
				}
			}
			cur[c] = best
			choice[i][c] = int32(pick)
		}
		prev, cur = cur, prev
	}

	p := NewPattern()
	c := capacity
	for i := n; i >= 1; i-- {
		if k := int(choice[i][c]); k > 0 {
			p.Items[inst.Items[i-1].ID] = k
			c -= k * int(grid.Sizes[i-1])
		}
	}
	p.Value = prev[capacity]
	return p
}

// ReducedCost 目标系数 1 减去模式的对偶价值。
func ReducedCost(p Pattern) float64 {
	return 1 - p.Value
}
