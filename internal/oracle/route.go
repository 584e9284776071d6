package oracle

// nearestNeighbour orders sites greedily starting from the facility.
func nearestNeighbour(cost [][]float64, facility int, sites []int) []int {
	left := append([]int(nil), sites...)
	order := make([]int, 0, len(sites))
	cur := facility
	for len(left) > 0 {
		best := 0
		for i := 1; i < len(left); i++ {
			if cost[cur][left[i]] < cost[cur][left[best]] {
				best = i
			}
		}
		cur = left[best]
		order = append(order, cur)
		left = append(left[:best], left[best+1:]...)
	}
	return order
}

// improveRoute applies 2-opt to the closed tour facility -> order -> facility
// and returns the improved visiting order.
func improveRoute(cost [][]float64, facility int, order []int, iterations int) []int {
	if iterations <= 0 {
		iterations = 1
	}
	tour := make([]int, 0, len(order)+2)
	tour = append(tour, facility)
	tour = append(tour, order...)
	tour = append(tour, facility)

	best := tour
	bestCost := tourCost(cost, best)
	n := len(tour)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 1; i < n-2; i++ {
			for k := i + 1; k < n-1; k++ {
				cand := twoOptSwap(best, i, k)
				c := tourCost(cost, cand)
				if c+1e-9 < bestCost {
					best = cand
					bestCost = c
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best[1 : n-1]
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

func tourCost(cost [][]float64, tour []int) float64 {
	total := 0.0
	for i := 0; i < len(tour)-1; i++ {
		total += cost[tour[i]][tour[i+1]]
	}
	return total
}
