package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/karthik-kata/StingerOps/internal/config"
	"github.com/karthik-kata/StingerOps/internal/model"
	"github.com/karthik-kata/StingerOps/internal/opt"
)

const maxRunIDLen = 128

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	const op = "validate request"
	switch opt.Algorithm(req.Algorithm) {
	case "", opt.AlgorithmGreedy, opt.AlgorithmGenetic, opt.AlgorithmBoth:
	default:
		return opt.Errorf(opt.KindInputValidation, op, "algorithm must be one of greedy, genetic, both (got %q)", req.Algorithm)
	}
	if len(req.RunID) > maxRunIDLen || strings.ContainsAny(req.RunID, "/ \t\n") {
		return opt.Errorf(opt.KindInputValidation, op, "run_id must be at most %d characters without slashes or spaces", maxRunIDLen)
	}
	if req.TimeBudgetMs < 0 {
		return opt.Errorf(opt.KindInputValidation, op, "time_budget_ms must be >= 0")
	}
	if req.MaxIterations < 0 || req.Generations < 0 || req.PopulationSize < 0 {
		return opt.Errorf(opt.KindInputValidation, op, "max_iterations, generations and population_size must be >= 0")
	}
	if req.UseExistingData != nil && *req.UseExistingData && req.HasData() {
		return opt.Errorf(opt.KindInputValidation, op, "use_existing_data cannot be combined with inline data")
	}
	return nil
}

// paramsFor overlays the request on the tenant defaults. The result is
// checked by opt.Params.Validate inside Optimize.
func paramsFor(req model.OptimizeRequest, o config.Optimizer) opt.Params {
	p := o.Params()
	if req.FleetSize != nil {
		p.FleetSize = *req.FleetSize
	}
	if req.TargetLines != nil {
		p.TargetLines = *req.TargetLines
	}
	if req.KTransfers != nil {
		p.KTransfers = *req.KTransfers
	}
	if req.TransferPenalty != nil {
		p.TransferPenalty = *req.TransferPenalty
	}
	if req.SpeedKph != nil {
		p.SpeedKph = *req.SpeedKph
	}
	if req.Algorithm != "" {
		p.Algorithm = opt.Algorithm(req.Algorithm)
	}
	if req.TimeBudgetMs > 0 {
		p.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
	}
	if req.MaxIterations > 0 {
		p.MaxIterations = req.MaxIterations
	}
	if req.Generations > 0 {
		p.Generations = req.Generations
	}
	if req.PopulationSize > 0 {
		p.PopulationSize = req.PopulationSize
	}
	p.Seed = req.Seed
	return p
}

// tenantOptimizer merges the tenant's stored overrides over the server defaults.
func (s *Server) tenantOptimizer(ctx context.Context, tenant string) (config.Optimizer, error) {
	base := s.Config.Optimizer
	cfg, err := s.Store.GetOptimizerConfig(ctx, tenant)
	if err != nil || len(cfg) == 0 {
		return base, err
	}
	return mergeOptimizer(base, cfg)
}

// mergeOptimizer decodes overrides over base through their JSON names.
func mergeOptimizer(base config.Optimizer, overrides map[string]any) (config.Optimizer, error) {
	b, err := json.Marshal(overrides)
	if err != nil {
		return base, fmt.Errorf("encode overrides: %w", err)
	}
	out := base
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return base, fmt.Errorf("optimizer config: %w", err)
	}
	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}

// statusFor maps an error kind onto the envelope's HTTP status.
func statusFor(err error) int {
	switch opt.KindOf(err) {
	case opt.KindInputValidation:
		return http.StatusBadRequest
	case opt.KindDataAvailability, opt.KindConstraintInfeasible:
		return http.StatusUnprocessableEntity
	case opt.KindComputationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
