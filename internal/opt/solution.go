package opt

import "math"

// Route is one closed bus line anchored at its hub (Stops[0]).
type Route struct {
	Hub          int
	Stops        []int
	Legs         []PathSegment // Legs[i] drives Stops[i] -> Stops[(i+1)%len]
	CycleMinutes float64
	Demand       float64 // additive: sum of assigned demand of its stops
	Cost         float64
	Efficiency   float64
	BusesNeeded  int
	Buses        int
}

// Metrics aggregates a Solution.
type Metrics struct {
	TotalCost      float64
	DemandCoverage float64
	Efficiency     float64
	CoveredDemand  float64
	TotalDemand    float64
}

// Solution is an ordered route set. Route order matters for fleet
// allocation: earlier routes are served first.
type Solution struct {
	Routes    []Route
	Metrics   Metrics
	Fitness   float64
	FleetUsed int
	// UnderServed is set when the first route received fewer buses than its headway needs.
	UnderServed bool
}

// stopSet marks the stops visited by any route.
func (s Solution) stopSet(n int) []bool {
	in := make([]bool, n)
	for _, rt := range s.Routes {
		for _, st := range rt.Stops {
			in[st] = true
		}
	}
	return in
}

// makeRoute evaluates an ordered stop list anchored at stops[0]. It reports
// false when the route has fewer than two stops, repeats a stop, contains an
// undrivable leg, or breaks the cycle-time ceiling.
func (r *run) makeRoute(stops []int) (Route, bool) {
	if len(stops) < 2 {
		return Route{}, false
	}
	seen := make(map[int]struct{}, len(stops))
	for _, s := range stops {
		if _, dup := seen[s]; dup {
			return Route{}, false
		}
		seen[s] = struct{}{}
	}
	legs := make([]PathSegment, len(stops))
	total := 0.0
	for i := range stops {
		seg := r.paths.Between(stops[i], stops[(i+1)%len(stops)])
		if seg == nil {
			return Route{}, false
		}
		legs[i] = *seg
		total += seg.TotalMinutes
	}
	cycle := total * (1 + r.p.LayoverFraction)
	if math.IsNaN(cycle) || !(cycle > 0) || cycle > r.p.MaxCycleMinutes+1e-9 {
		return Route{}, false
	}
	demand := 0.0
	for _, s := range stops {
		demand += r.stops[s].AssignedDemand
	}
	return Route{
		Hub:          stops[0],
		Stops:        append([]int(nil), stops...),
		Legs:         legs,
		CycleMinutes: cycle,
		Demand:       demand,
		Cost:         cycle * r.p.CostPerMinute,
		Efficiency:   demand / math.Max(cycle, 1),
		BusesNeeded:  r.busesNeeded(cycle),
	}, true
}

func (r *run) busesNeeded(cycle float64) int {
	n := int(math.Ceil(cycle/r.p.HeadwayMinutes - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// allocate hands out buses in route order. The first route always gets
// min(needed, fleet); any later route must be fully served or the set is
// rejected.
func (r *run) allocate(routes []Route) (used int, underServed, ok bool) {
	remaining := r.p.FleetSize
	for i := range routes {
		need := routes[i].BusesNeeded
		switch {
		case need <= remaining:
			routes[i].Buses = need
		case i == 0 && remaining >= 1:
			routes[i].Buses = remaining
			underServed = true
		default:
			return 0, false, false
		}
		remaining -= routes[i].Buses
	}
	return r.p.FleetSize - remaining, underServed, true
}

// finish checks the global constraints of a route set and scores it.
func (r *run) finish(routes []Route) (Solution, bool) {
	if len(routes) == 0 || len(routes) > r.p.TargetLines {
		return Solution{}, false
	}
	routes = append([]Route(nil), routes...)
	used, under, ok := r.allocate(routes)
	if !ok {
		return Solution{}, false
	}
	sol := Solution{Routes: routes, FleetUsed: used, UnderServed: under}
	sol.Metrics = r.measure(sol)
	sol.Fitness = r.fitness(sol.Metrics)
	return sol, true
}

// measure computes cost, coverage and efficiency. Coverage counts each stop
// once even when several routes serve it.
func (r *run) measure(sol Solution) Metrics {
	m := Metrics{TotalDemand: r.totalDemand}
	for _, rt := range sol.Routes {
		m.TotalCost += rt.Cost
	}
	in := sol.stopSet(len(r.stops))
	for i, ok := range in {
		if ok {
			m.CoveredDemand += r.stops[i].AssignedDemand
		}
	}
	if r.totalDemand > 0 {
		m.DemandCoverage = m.CoveredDemand / r.totalDemand
	}
	m.Efficiency = m.CoveredDemand / math.Max(m.TotalCost, 1)
	return m
}

// fitness rewards coverage and charges cost relative to the largest cost the
// fleet could run at the cycle ceiling.
func (r *run) fitness(m Metrics) float64 {
	ref := float64(r.p.FleetSize) * r.p.MaxCycleMinutes * r.p.CostPerMinute
	if ref <= 0 {
		ref = 1
	}
	return m.DemandCoverage - r.p.CostWeight*m.TotalCost/ref
}
