package opt

import "math"

const fitnessEps = 1e-9

// refineGreedy applies the single best improving move per iteration until no
// move improves fitness or the iteration/time budget runs out. It draws no
// random numbers, so equal inputs give equal outputs.
func (r *run) refineGreedy(init Solution) Solution {
	cur := init
	for it := 1; it <= r.p.MaxIterations; it++ {
		if r.expired() {
			break
		}
		r.stats.GreedyIterations++
		next, ok := r.bestMove(cur)
		if !ok {
			break
		}
		cur = next
		r.stats.Improvements++
		r.report("greedy", it, cur)
	}
	return cur
}

func (r *run) bestMove(cur Solution) (Solution, bool) {
	best := cur
	improved := false
	consider := func(routes []Route) {
		if s, ok := r.finish(routes); ok && s.Fitness > best.Fitness+fitnessEps {
			best, improved = s, true
		}
	}
	replaced := func(i int, rt Route) []Route {
		out := append([]Route(nil), cur.Routes...)
		out[i] = rt
		return out
	}

	// extend a route with an unserved stop that carries demand
	in := cur.stopSet(len(r.stops))
	for ri, rt := range cur.Routes {
		reach := r.paths.From(rt.Hub)
		for j := range r.stops {
			if in[j] || reach[j] == nil || r.stops[j].AssignedDemand <= 0 {
				continue
			}
			pos := cheapestInsertion(rt.Stops, j, r.paths.LegMinutes)
			if pos < 0 {
				continue
			}
			if nr, ok := r.makeRoute(insertAt(rt.Stops, pos, j)); ok {
				consider(replaced(ri, nr))
			}
		}
	}

	// swap non-hub stops between two routes
	for a := 0; a < len(cur.Routes); a++ {
		for b := a + 1; b < len(cur.Routes); b++ {
			ra, rb := cur.Routes[a], cur.Routes[b]
			for i := 1; i < len(ra.Stops); i++ {
				for j := 1; j < len(rb.Stops); j++ {
					sa := append([]int(nil), ra.Stops...)
					sb := append([]int(nil), rb.Stops...)
					sa[i], sb[j] = sb[j], sa[i]
					na, okA := r.makeRoute(sa)
					if !okA {
						continue
					}
					nb, okB := r.makeRoute(sb)
					if !okB {
						continue
					}
					out := append([]Route(nil), cur.Routes...)
					out[a], out[b] = na, nb
					consider(out)
				}
			}
		}
	}

	// drop a non-hub stop
	for ri, rt := range cur.Routes {
		if len(rt.Stops) <= 2 {
			continue
		}
		for i := 1; i < len(rt.Stops); i++ {
			if nr, ok := r.makeRoute(removeAt(rt.Stops, i)); ok {
				consider(replaced(ri, nr))
			}
		}
	}
	return best, improved
}

// cheapestInsertion returns the position (>=1) where inserting s adds the
// least cycle time, or -1 when every position needs an undrivable leg.
func cheapestInsertion(order []int, s int, leg func(a, b int) float64) int {
	best, bestDelta := -1, math.Inf(1)
	for pos := 1; pos <= len(order); pos++ {
		prev := order[pos-1]
		next := order[pos%len(order)]
		delta := leg(prev, s) + leg(s, next) - leg(prev, next)
		if delta < bestDelta {
			best, bestDelta = pos, delta
		}
	}
	return best
}

func insertAt(order []int, pos, s int) []int {
	out := make([]int, 0, len(order)+1)
	out = append(out, order[:pos]...)
	out = append(out, s)
	return append(out, order[pos:]...)
}

func removeAt(order []int, pos int) []int {
	out := make([]int, 0, len(order)-1)
	out = append(out, order[:pos]...)
	return append(out, order[pos+1:]...)
}
