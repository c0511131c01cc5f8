package opt

import (
	"fmt"
	"time"
)

// DemandPoint is a weighted origin of transit need (a building or a source).
type DemandPoint struct {
	ID     string
	Name   string
	Lat    float64
	Lng    float64
	Weight float64
}

// StopCandidate is a location a route may visit. AssignedDemand is filled
// by DistributeDemand and is zero on input.
type StopCandidate struct {
	ID             string
	Name           string
	Lat            float64
	Lng            float64
	Capacity       *int
	AssignedDemand float64
}

type Algorithm string

const (
	AlgorithmGreedy  Algorithm = "greedy"
	AlgorithmGenetic Algorithm = "genetic"
	AlgorithmBoth    Algorithm = "both"
)

// Params are the knobs of a single optimization run.
type Params struct {
	FleetSize       int
	TargetLines     int
	KTransfers      int
	TransferPenalty float64 // minutes per transfer
	SpeedKph        float64
	Algorithm       Algorithm

	MaxAssignKm      float64 // 0 disables the assignment radius
	KNearest         int
	NeighborRadiusKm float64 // negative links the k nearest only, 0 selects the default
	MaxCycleMinutes  float64
	HeadwayMinutes   float64
	LayoverFraction  float64
	CostPerMinute    float64
	CostWeight       float64

	MaxIterations  int // greedy
	Generations    int // genetic
	PopulationSize int
	Patience       int
	MutationRate   float64
	Seed           int64 // 0 means time-derived
	TimeBudget     time.Duration
}

// DefaultParams mirrors the defaults exposed by the API and the CLI.
func DefaultParams() Params {
	return Params{
		FleetSize:        12,
		TargetLines:      12,
		KTransfers:       2,
		TransferPenalty:  5,
		SpeedKph:         30,
		Algorithm:        AlgorithmGenetic,
		KNearest:         6,
		NeighborRadiusKm: 1.5,
		MaxCycleMinutes:  45,
		HeadwayMinutes:   15,
		LayoverFraction:  0.1,
		CostPerMinute:    1,
		CostWeight:       0.05,
		MaxIterations:    200,
		Generations:      100,
		PopulationSize:   50,
		Patience:         20,
		MutationRate:     0.3,
		TimeBudget:       45 * time.Second,
	}
}

// Validate reports the first parameter outside its domain as an InputValidationError.
func (p Params) Validate() error {
	const op = "validate params"
	switch {
	case p.FleetSize < 1:
		return Errorf(KindInputValidation, op, "fleet_size must be >= 1")
	case p.TargetLines < 1:
		return Errorf(KindInputValidation, op, "target_lines must be >= 1")
	case p.KTransfers < 0:
		return Errorf(KindInputValidation, op, "k_transfers must be >= 0")
	case p.TransferPenalty < 0:
		return Errorf(KindInputValidation, op, "transfer_penalty must be >= 0")
	case !(p.SpeedKph > 0):
		return Errorf(KindInputValidation, op, "speed_kmh must be > 0")
	case p.MaxAssignKm < 0:
		return Errorf(KindInputValidation, op, "max_assign_km must be >= 0")
	case p.LayoverFraction < 0:
		return Errorf(KindInputValidation, op, "layover_fraction must be >= 0")
	case p.CostWeight < 0:
		return Errorf(KindInputValidation, op, "cost_weight must be >= 0")
	case p.MutationRate < 0 || p.MutationRate > 1:
		return Errorf(KindInputValidation, op, "mutation_rate must be in [0,1]")
	}
	switch p.Algorithm {
	case AlgorithmGreedy, AlgorithmGenetic, AlgorithmBoth:
	default:
		return Errorf(KindInputValidation, op, "algorithm must be one of greedy, genetic, both (got %q)", string(p.Algorithm))
	}
	return nil
}

// normalized fills structural knobs that have no meaningful zero value.
func (p Params) normalized() Params {
	d := DefaultParams()
	if p.KNearest <= 0 {
		p.KNearest = d.KNearest
	}
	if p.NeighborRadiusKm == 0 {
		p.NeighborRadiusKm = d.NeighborRadiusKm
	}
	if p.MaxCycleMinutes <= 0 {
		p.MaxCycleMinutes = d.MaxCycleMinutes
	}
	if p.HeadwayMinutes <= 0 {
		p.HeadwayMinutes = d.HeadwayMinutes
	}
	if p.CostPerMinute <= 0 {
		p.CostPerMinute = d.CostPerMinute
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.Generations <= 0 {
		p.Generations = d.Generations
	}
	if p.PopulationSize < 2 {
		p.PopulationSize = d.PopulationSize
	}
	if p.Patience <= 0 {
		p.Patience = d.Patience
	}
	if p.TimeBudget <= 0 {
		p.TimeBudget = d.TimeBudget
	}
	return p
}

func (p Params) String() string {
	return fmt.Sprintf("fleet=%d lines=%d k=%d penalty=%.1f speed=%.1f algo=%s seed=%d",
		p.FleetSize, p.TargetLines, p.KTransfers, p.TransferPenalty, p.SpeedKph, p.Algorithm, p.Seed)
}

// Problem is the input of one optimization invocation.
type Problem struct {
	Points []DemandPoint
	Stops  []StopCandidate
	Params Params
	// Progress, when set, is called after every refinement iteration or generation.
	Progress func(Progress)
}

// Progress is a snapshot emitted while refining.
type Progress struct {
	Stage       string  `json:"stage"`
	Iteration   int     `json:"iteration"`
	BestFitness float64 `json:"bestFitness"`
	Coverage    float64 `json:"coverage"`
	Routes      int     `json:"routes"`
}
