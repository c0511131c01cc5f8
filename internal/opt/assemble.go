package opt

import (
	"fmt"
	"math"
	"sort"
)

// buildRoute grows a cycle from hub by nearest-neighbour over the stops the
// hub can reach, then tightens it with improveCycle.
func (r *run) buildRoute(hub int) (Route, bool) {
	reach := r.paths.From(hub)
	cands := make([]int, 0, len(reach))
	for j, seg := range reach {
		if seg != nil {
			cands = append(cands, j)
		}
	}
	if len(cands) == 0 {
		return Route{}, false
	}
	sort.SliceStable(cands, func(a, b int) bool {
		ta, tb := reach[cands[a]].TotalMinutes, reach[cands[b]].TotalMinutes
		if ta != tb {
			return ta < tb
		}
		return r.stops[cands[a]].ID < r.stops[cands[b]].ID
	})

	budget := r.p.MaxCycleMinutes / (1 + r.p.LayoverFraction)
	order := []int{hub}
	used := make([]bool, len(r.stops))
	used[hub] = true
	open := 0.0 // hub -> ... -> tail, without the closing leg
	for {
		tail := order[len(order)-1]
		best, bestLeg := -1, math.Inf(1)
		for _, j := range cands {
			if used[j] {
				continue
			}
			leg := r.paths.LegMinutes(tail, j)
			if !(leg < bestLeg) {
				continue
			}
			back := r.paths.LegMinutes(j, hub)
			if open+leg+back > budget+1e-9 {
				continue
			}
			best, bestLeg = j, leg
		}
		if best < 0 {
			break
		}
		order = append(order, best)
		used[best] = true
		open += bestLeg
	}
	if len(order) < 2 {
		return Route{}, false
	}
	order = improveCycle(order, r.paths.LegMinutes, 50)
	return r.makeRoute(order)
}

// assemble walks the hub ranking, building one route per hub until
// target_lines routes exist or the fleet runs out. Hubs that reach no other
// stop are skipped in favour of the next candidate. Cancellation before the
// first route is a ComputationTimeoutError; after it, the routes built so far
// are kept and the run is partial.
func (r *run) assemble() (Solution, error) {
	const op = "assemble routes"
	remaining := r.p.FleetSize
	var routes []Route
	for _, h := range r.hubOrder {
		if len(routes) >= r.p.TargetLines {
			break
		}
		if err := r.ctx.Err(); err != nil {
			if len(routes) == 0 {
				return Solution{}, &Error{Kind: KindComputationTimeout, Op: op, Msg: "cancelled before any route was built", Err: err}
			}
			r.partial = true
			r.note("assembly stopped after %d routes", len(routes))
			break
		}
		if remaining <= 0 {
			r.note("fleet exhausted after %d routes", len(routes))
			break
		}
		if len(routes) > 0 && r.stops[h].AssignedDemand <= 0 {
			// remaining candidates carry no demand
			break
		}
		rt, ok := r.buildRoute(h)
		if !ok {
			r.note("hub %s dropped: no reachable stops within %d transfers", r.stops[h].ID, r.p.KTransfers)
			continue
		}
		if rt.BusesNeeded > remaining {
			if len(routes) > 0 {
				r.note("fleet exhausted: route at hub %s needs %d buses, %d left", r.stops[h].ID, rt.BusesNeeded, remaining)
				break
			}
			r.note("route at hub %s under-served: needs %d buses, fleet is %d", r.stops[h].ID, rt.BusesNeeded, remaining)
		}
		need := rt.BusesNeeded
		if need > remaining {
			need = remaining
		}
		remaining -= need
		routes = append(routes, rt)
	}
	if len(routes) == 0 {
		return Solution{}, Errorf(KindConstraintInfeasible, op, "no hub reaches another stop within %d transfers and %.0f minutes", r.p.KTransfers, r.p.MaxCycleMinutes)
	}
	if len(routes) < r.p.TargetLines {
		r.note("assembled %d of %d target lines", len(routes), r.p.TargetLines)
	}
	sol, ok := r.finish(routes)
	if !ok {
		return Solution{}, Errorf(KindAlgorithm, op, "assembled route set failed fleet allocation")
	}
	return sol, nil
}

func (r *run) note(format string, args ...any) {
	r.diagnostics = append(r.diagnostics, fmt.Sprintf(format, args...))
}
