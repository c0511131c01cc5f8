package opt

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Stats are run counters. They vary with wall-clock time and are kept out of Report.
type Stats struct {
	GreedyIterations int
	Generations      int
	Improvements     int
	GreedyFitness    float64
	GeneticFitness   float64
	Seed             int64
	Elapsed          time.Duration
}

// Result is the outcome of Optimize.
type Result struct {
	Solution        Solution
	Stops           []StopCandidate // with AssignedDemand populated
	Strategy        Algorithm
	Partial         bool
	UncoveredDemand float64
	Diagnostics     []string
	Stats           Stats
	Params          Params
}

// run carries every mutable accumulator of a single invocation. Nothing in
// it outlives the Optimize call that created it.
type run struct {
	ctx         context.Context
	p           Params
	stops       []StopCandidate
	totalDemand float64
	graph       *Graph
	paths       *PathSolver
	hubOrder    []int
	deadline    time.Time
	partial     bool
	diagnostics []string
	stats       Stats
	progress    func(Progress)
}

// Optimize runs the whole pipeline: demand distribution, hub ranking, graph
// and path construction, route assembly with fleet allocation, refinement
// with the requested strategy, and scoring. Budget exhaustion or ctx
// cancellation during refinement is not an error: the best Solution so far
// is returned with Partial set. Cancellation before any route exists is a
// ComputationTimeoutError. With AlgorithmBoth, greedy is limited to half of
// the budget left after assembly so genetic always gets a share.
func Optimize(ctx context.Context, pr Problem) (Result, error) {
	started := time.Now()
	if err := pr.Params.Validate(); err != nil {
		return Result{}, err
	}
	p := pr.Params.normalized()

	stops, uncovered, err := DistributeDemand(pr.Points, pr.Stops, p.MaxAssignKm)
	if err != nil {
		return Result{}, err
	}
	total := uncovered
	for _, s := range stops {
		total += s.AssignedDemand
	}
	g, err := BuildGraph(stops, p.SpeedKph, p.KNearest, p.NeighborRadiusKm)
	if err != nil {
		return Result{}, err
	}
	r := &run{
		ctx:         ctx,
		p:           p,
		stops:       stops,
		totalDemand: total,
		graph:       g,
		paths:       NewPathSolver(g, p.KTransfers, p.TransferPenalty),
		hubOrder:    RankHubs(stops),
		deadline:    started.Add(p.TimeBudget),
		progress:    pr.Progress,
	}

	init, err := r.assemble()
	if err != nil {
		return Result{}, err
	}
	r.report("assembly", 0, init)

	var best Solution
	strategy := p.Algorithm
	switch p.Algorithm {
	case AlgorithmGreedy:
		best = r.refineGreedy(init)
		r.stats.GreedyFitness = best.Fitness
	case AlgorithmGenetic:
		best = r.refineGenetic(init, r.rng())
		r.stats.GeneticFitness = best.Fitness
	case AlgorithmBoth:
		// greedy may use half of what is left; genetic gets the rest
		end := r.deadline
		r.deadline = time.Now().Add(time.Until(end) / 2)
		greedy := r.refineGreedy(init)
		r.deadline = end
		genetic := r.refineGenetic(init, r.rng())
		r.stats.GreedyFitness, r.stats.GeneticFitness = greedy.Fitness, genetic.Fitness
		best, strategy = greedy, AlgorithmGreedy
		if genetic.Fitness > greedy.Fitness+fitnessEps {
			best, strategy = genetic, AlgorithmGenetic
		}
	}
	if err := checkFinite(best); err != nil {
		return Result{}, err
	}
	if best.UnderServed {
		r.note("first route runs with %d buses, below its headway requirement of %d", best.Routes[0].Buses, best.Routes[0].BusesNeeded)
	}
	if r.partial {
		r.note("%s", (&Error{Kind: KindComputationTimeout, Op: "refine", Msg: "budget exhausted, returning best solution found"}).Error())
	}
	r.stats.Elapsed = time.Since(started)
	return Result{
		Solution:        best,
		Stops:           stops,
		Strategy:        strategy,
		Partial:         r.partial,
		UncoveredDemand: uncovered,
		Diagnostics:     r.diagnostics,
		Stats:           r.stats,
		Params:          p,
	}, nil
}

// rng seeds the genetic search; seed 0 selects a time-derived seed.
func (r *run) rng() *rand.Rand {
	seed := r.p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r.stats.Seed = seed
	return rand.New(rand.NewSource(seed))
}

// expired is checked once per iteration or generation.
func (r *run) expired() bool {
	if r.ctx.Err() != nil || time.Now().After(r.deadline) {
		r.partial = true
		return true
	}
	return false
}

func (r *run) report(stage string, it int, s Solution) {
	if r.progress == nil {
		return
	}
	r.progress(Progress{
		Stage:       stage,
		Iteration:   it,
		BestFitness: s.Fitness,
		Coverage:    s.Metrics.DemandCoverage,
		Routes:      len(s.Routes),
	})
}

func checkFinite(s Solution) error {
	vals := []float64{s.Fitness, s.Metrics.TotalCost, s.Metrics.DemandCoverage, s.Metrics.Efficiency}
	for _, rt := range s.Routes {
		vals = append(vals, rt.CycleMinutes, rt.Cost, rt.Efficiency, rt.Demand)
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Errorf(KindAlgorithm, "score solution", "non-finite metric in final solution")
		}
	}
	return nil
}
