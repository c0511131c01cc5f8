package opt

import (
	"math/rand"
	"sort"
)

// refineGenetic evolves a population seeded from init. Parents are drawn
// from the top-K, offspring inherit whole routes slot by slot, and every
// child is repaired back into a feasible Solution before it joins the next
// generation. All randomness comes from rng.
func (r *run) refineGenetic(init Solution, rng *rand.Rand) Solution {
	size := r.p.PopulationSize
	elite := size / 4
	if elite < 2 {
		elite = 2
	}
	if elite > size {
		elite = size
	}

	pop := make([]Solution, 0, size)
	pop = append(pop, init)
	for len(pop) < size {
		pop = append(pop, r.mutate(init, rng))
	}
	best := init
	stale := 0
	for gen := 1; gen <= r.p.Generations; gen++ {
		if r.expired() {
			break
		}
		r.stats.Generations++
		sort.SliceStable(pop, func(i, j int) bool { return pop[i].Fitness > pop[j].Fitness })
		parents := pop[:elite]
		next := make([]Solution, 0, size)
		next = append(next, parents...)
		for len(next) < size {
			a := parents[rng.Intn(len(parents))]
			b := parents[rng.Intn(len(parents))]
			child := r.crossover(a, b, rng)
			if rng.Float64() < r.p.MutationRate {
				child = r.mutate(child, rng)
			}
			next = append(next, child)
		}
		pop = next

		genBest := pop[0]
		for _, s := range pop[1:] {
			if s.Fitness > genBest.Fitness {
				genBest = s
			}
		}
		if genBest.Fitness > best.Fitness+fitnessEps {
			best = genBest
			stale = 0
			r.stats.Improvements++
		} else {
			stale++
		}
		r.report("genetic", gen, best)
		if stale >= r.p.Patience {
			break
		}
	}
	return best
}

// crossover takes each route slot from one parent or the other.
func (r *run) crossover(a, b Solution, rng *rand.Rand) Solution {
	n := len(a.Routes)
	if len(b.Routes) > n {
		n = len(b.Routes)
	}
	child := make([][]int, 0, n)
	for i := 0; i < n; i++ {
		useA := rng.Intn(2) == 0
		if i >= len(a.Routes) {
			useA = false
		}
		if i >= len(b.Routes) {
			useA = true
		}
		if useA {
			child = append(child, a.Routes[i].Stops)
		} else {
			child = append(child, b.Routes[i].Stops)
		}
	}
	if s, ok := r.repair(child); ok {
		return s
	}
	return a
}

// mutate perturbs one route: segment reversal, stop swap, insertion of an
// unserved reachable stop, or removal of a non-hub stop.
func (r *run) mutate(s Solution, rng *rand.Rand) Solution {
	if len(s.Routes) == 0 {
		return s
	}
	orders := make([][]int, len(s.Routes))
	for i, rt := range s.Routes {
		orders[i] = rt.Stops
	}
	ri := rng.Intn(len(orders))
	order := append([]int(nil), orders[ri]...)
	n := len(order)
	switch rng.Intn(4) {
	case 0:
		if n >= 3 {
			i := 1 + rng.Intn(n-1)
			k := 1 + rng.Intn(n-1)
			if i > k {
				i, k = k, i
			}
			order = twoOptSwap(order, i, k)
		}
	case 1:
		if n >= 3 {
			i := 1 + rng.Intn(n-1)
			k := 1 + rng.Intn(n-1)
			order[i], order[k] = order[k], order[i]
		}
	case 2:
		in := s.stopSet(len(r.stops))
		reach := r.paths.From(order[0])
		var pool []int
		for j := range r.stops {
			if !in[j] && reach[j] != nil && r.stops[j].AssignedDemand > 0 {
				pool = append(pool, j)
			}
		}
		if len(pool) > 0 {
			order = insertAt(order, 1+rng.Intn(n), pool[rng.Intn(len(pool))])
		}
	case 3:
		if n > 2 {
			order = removeAt(order, 1+rng.Intn(n-1))
		}
	}
	orders[ri] = order
	if out, ok := r.repair(orders); ok {
		return out
	}
	return s
}

// repair turns raw stop orders into a feasible Solution: duplicate stops are
// removed, then the lowest-demand non-hub stop is dropped until the route is
// drivable within the cycle ceiling. Routes that collapse below two stops or
// repeat an earlier hub are discarded, and trailing routes are dropped until
// the fleet and line limits hold.
func (r *run) repair(orders [][]int) (Solution, bool) {
	var routes []Route
	hubs := map[int]bool{}
	for _, raw := range orders {
		if len(raw) == 0 || hubs[raw[0]] {
			continue
		}
		order := dedupe(raw)
		var rt Route
		ok := false
		for len(order) >= 2 {
			if rt, ok = r.makeRoute(order); ok {
				break
			}
			order = removeAt(order, r.lowestValue(order))
		}
		if !ok {
			continue
		}
		hubs[rt.Hub] = true
		routes = append(routes, rt)
	}
	if len(routes) > r.p.TargetLines {
		routes = routes[:r.p.TargetLines]
	}
	for len(routes) > 0 {
		if s, ok := r.finish(routes); ok {
			return s, true
		}
		routes = routes[:len(routes)-1]
	}
	return Solution{}, false
}

func dedupe(order []int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(order))
	for _, s := range order {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// lowestValue returns the position of the non-hub stop with the least demand.
func (r *run) lowestValue(order []int) int {
	pos := 1
	for i := 2; i < len(order); i++ {
		if r.stops[order[i]].AssignedDemand < r.stops[order[pos]].AssignedDemand {
			pos = i
		}
	}
	return pos
}
