package opt

import "math"

const earthRadiusKm = 6371.0088

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func travelMinutes(km, speedKph float64) float64 {
	return km / speedKph * 60
}

// improveCycle runs 2-opt segment reversals and pairwise swaps on a closed
// cycle whose first element stays fixed. legCost returns +Inf for legs that
// cannot be driven. Only strict reductions are accepted.
func improveCycle(order []int, legCost func(a, b int) float64, iterations int) []int {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]int(nil), order...)
	n := len(best)
	if n < 4 {
		return best
	}
	bestCost := cycleCost(best, legCost)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				if c := cycleCost(cand, legCost); c+1e-6 < bestCost {
					best, bestCost, improved = cand, c, true
				}
				cand = append([]int(nil), best...)
				cand[i], cand[k] = cand[k], cand[i]
				if c := cycleCost(cand, legCost); c+1e-6 < bestCost {
					best, bestCost, improved = cand, c, true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
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

func cycleCost(order []int, legCost func(a, b int) float64) float64 {
	if len(order) < 2 {
		return 0
	}
	total := 0.0
	for i := range order {
		total += legCost(order[i], order[(i+1)%len(order)])
	}
	return total
}
