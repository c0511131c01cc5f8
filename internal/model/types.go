package model

import (
	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/opt"
)

// OptimizeRequest is the body of POST /v1/optimize. Nil pointers fall back
// to the tenant's optimizer defaults.
type OptimizeRequest struct {
	RunID           string   `json:"run_id,omitempty"`
	FleetSize       *int     `json:"fleet_size,omitempty"`
	TargetLines     *int     `json:"target_lines,omitempty"`
	KTransfers      *int     `json:"k_transfers,omitempty"`
	TransferPenalty *float64 `json:"transfer_penalty,omitempty"`
	SpeedKph        *float64 `json:"speed_kmh,omitempty"`
	Algorithm       string   `json:"algorithm,omitempty"`
	UseExistingData *bool    `json:"use_existing_data,omitempty"`

	Seed           int64 `json:"seed,omitempty"`
	TimeBudgetMs   int   `json:"time_budget_ms,omitempty"`
	MaxIterations  int   `json:"max_iterations,omitempty"`
	Generations    int   `json:"generations,omitempty"`
	PopulationSize int   `json:"population_size,omitempty"`

	BuildingsData []dataset.BuildingRow `json:"buildings_data,omitempty"`
	SourcesData   []dataset.SourceRow   `json:"sources_data,omitempty"`
	StopsData     []dataset.StopRow     `json:"stops_data,omitempty"`
}

// HasData reports whether the request carries inline datasets. An explicit
// empty array counts as inline data.
func (r OptimizeRequest) HasData() bool {
	return r.BuildingsData != nil || r.SourcesData != nil || r.StopsData != nil
}

// StoredData reports whether the tenant's stored datasets should be used when
// no inline data is sent. It defaults to true.
func (r OptimizeRequest) StoredData() bool {
	return r.UseExistingData == nil || *r.UseExistingData
}

// Parameters echoes the effective invocation parameters.
type Parameters struct {
	FleetSize       int     `json:"fleet_size"`
	TargetLines     int     `json:"target_lines"`
	KTransfers      int     `json:"k_transfers"`
	TransferPenalty float64 `json:"transfer_penalty"`
	SpeedKph        float64 `json:"speed_kmh"`
	Algorithm       string  `json:"algorithm"`
	Seed            int64   `json:"seed,omitempty"`
	TimeBudgetMs    int64   `json:"time_budget_ms"`
}

// RunStats are per-run counters that vary between runs.
type RunStats struct {
	ElapsedMs        int64   `json:"elapsed_ms"`
	GreedyIterations int     `json:"greedy_iterations"`
	Generations      int     `json:"generations"`
	Improvements     int     `json:"improvements"`
	GreedyFitness    float64 `json:"greedy_fitness,omitempty"`
	GeneticFitness   float64 `json:"genetic_fitness,omitempty"`
}

// OptimizeResponse wraps the result envelope with run metadata.
type OptimizeResponse struct {
	opt.Report
	OptimizationID string      `json:"optimization_id"`
	DataSource     string      `json:"data_source,omitempty"`
	Parameters     *Parameters `json:"parameters,omitempty"`
	Stats          *RunStats   `json:"stats,omitempty"`
}

// DatasetImport is returned after a dataset upload.
type DatasetImport struct {
	ImportID string `json:"importId"`
	Kind     string `json:"kind"`
	Count    int    `json:"count"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

// Webhook event types.
const (
	EventOptimizationCompleted = "optimization.completed"
	EventOptimizationFailed    = "optimization.failed"
	EventDatasetImported       = "dataset.imported"
)

// EventTypes lists the events a subscription may name.
var EventTypes = []string{EventOptimizationCompleted, EventOptimizationFailed, EventDatasetImported}
