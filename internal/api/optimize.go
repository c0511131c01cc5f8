package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/metrics"
	"github.com/karthik-kata/StingerOps/internal/model"
	"github.com/karthik-kata/StingerOps/internal/opt"
	"github.com/karthik-kata/StingerOps/internal/store"
)

const maxOptimizeBody = 32 << 20

// Data sources reported in the response.
const (
	sourceRequest = "request"
	sourceStored  = "stored"
	sourceSample  = "sample"
)

// runTopic scopes broker channels to the tenant.
func runTopic(tenant, runID string) string { return tenant + "/" + runID }

// OptimizeHandler handles POST /v1/optimize. The call is synchronous; progress
// is published to the run's stream while it executes.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimize" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.requirePlanner(w, r)
	if !ok {
		return
	}
	if !s.Limiter.Allow(p.Tenant) {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.Limiter.RetryAfter()/time.Second)))
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "optimization rate limit exceeded", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOptimizeBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeFailure(w, err, "")
		return
	}
	data, source, err := s.loadData(r.Context(), p.Tenant, req)
	if err == nil {
		err = data.Validate()
	}
	if err != nil {
		if opt.KindOf(err) == "" {
			writeProblem(w, http.StatusInternalServerError, "Load datasets failed", err.Error(), r.URL.Path)
			return
		}
		writeFailure(w, err, source)
		return
	}
	defaults, err := s.tenantOptimizer(r.Context(), p.Tenant)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Optimizer config unavailable", err.Error(), r.URL.Path)
		return
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	} else if _, err := s.Store.GetRun(r.Context(), p.Tenant, runID); err == nil {
		writeProblem(w, http.StatusConflict, "Run exists", "run_id "+runID+" already finished", r.URL.Path)
		return
	}
	if !s.Runs.Begin(p.Tenant, runID) {
		writeProblem(w, http.StatusConflict, "Run in progress", "run_id "+runID+" is already running", r.URL.Path)
		return
	}
	resp, status := s.runOptimization(r.Context(), p.Tenant, runID, source, data, paramsFor(req, defaults))
	writeJSON(w, status, resp)
}

// loadData picks inline rows, else the tenant's stored datasets. The sample
// dataset is only served by SampleHandler.
func (s *Server) loadData(ctx context.Context, tenant string, req model.OptimizeRequest) (dataset.Dataset, string, error) {
	const op = "load datasets"
	switch {
	case req.HasData():
		d := dataset.Dataset{Buildings: req.BuildingsData, Sources: req.SourcesData, Stops: req.StopsData}
		if d.Empty() {
			return d, sourceRequest, opt.Errorf(opt.KindDataAvailability, op, "inline datasets are empty")
		}
		return d, sourceRequest, nil
	case req.StoredData():
		d, err := s.Store.LoadDataset(ctx, tenant)
		if err != nil {
			return d, sourceStored, err
		}
		if d.Empty() {
			return d, sourceStored, opt.Errorf(opt.KindDataAvailability, op, "no datasets stored for tenant %s", tenant)
		}
		return d, sourceStored, nil
	default:
		return dataset.Dataset{}, "", opt.Errorf(opt.KindDataAvailability, op, "insufficient data for optimization: use_existing_data is false and no inline datasets were sent")
	}
}

// runOptimization executes one run and records it everywhere it is observed:
// the progress stream, the run cache, metrics, the store and webhooks.
func (s *Server) runOptimization(ctx context.Context, tenant, runID, source string, data dataset.Dataset, params opt.Params) (model.OptimizeResponse, int) {
	if s.Config.OptimizeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.OptimizeTimeout)
		defer cancel()
	}
	topic := runTopic(tenant, runID)
	publish := func(evt SSEEvent) {
		s.Broker.Publish(topic, evt)
		s.Runs.Record(tenant, runID, evt)
	}
	publish(SSEEvent{Type: EventRunStarted, Data: map[string]any{"runId": runID, "algorithm": string(params.Algorithm), "dataSource": source}})

	metrics.OptimizeInFlight.Inc()
	defer metrics.OptimizeInFlight.Dec()
	points, stops := data.DemandPoints(), data.StopCandidates()
	log.Printf("optimize start run=%s tenant=%s source=%s points=%d stops=%d %s", runID, tenant, source, len(points), len(stops), params)

	started := time.Now()
	res, err := opt.Optimize(ctx, opt.Problem{
		Points: points,
		Stops:  stops,
		Params: params,
		Progress: func(pg opt.Progress) {
			publish(SSEEvent{Type: EventRunProgress, Data: map[string]any{
				"runId":       runID,
				"stage":       pg.Stage,
				"iteration":   pg.Iteration,
				"bestFitness": pg.BestFitness,
				"coverage":    pg.Coverage,
				"routes":      pg.Routes,
			}})
		},
	})
	elapsed := time.Since(started)
	metrics.OptimizeDuration.WithLabelValues(string(params.Algorithm)).Observe(elapsed.Seconds())

	resp := model.OptimizeResponse{OptimizationID: runID, DataSource: source, Parameters: parametersOf(params)}
	run := store.Run{ID: runID, TenantID: tenant, Algorithm: string(params.Algorithm), CreatedAt: time.Now().UTC()}
	status := http.StatusOK
	if err != nil {
		resp.Report = opt.FailureReport(err)
		status = statusFor(err)
		metrics.OptimizeRuns.WithLabelValues(string(params.Algorithm), "failed").Inc()
		log.Printf("optimize failed run=%s tenant=%s kind=%s elapsed=%s: %v", runID, tenant, resp.ErrorKind, elapsed.Round(time.Millisecond), err)
	} else {
		resp.Report = opt.BuildReport(res)
		resp.Parameters = parametersOf(res.Params)
		resp.Parameters.Seed = res.Stats.Seed
		resp.Stats = &model.RunStats{
			ElapsedMs:        res.Stats.Elapsed.Milliseconds(),
			GreedyIterations: res.Stats.GreedyIterations,
			Generations:      res.Stats.Generations,
			Improvements:     res.Stats.Improvements,
			GreedyFitness:    res.Stats.GreedyFitness,
			GeneticFitness:   res.Stats.GeneticFitness,
		}
		outcome := "completed"
		if res.Partial {
			outcome = "partial"
		}
		metrics.OptimizeRuns.WithLabelValues(string(params.Algorithm), outcome).Inc()
		metrics.OptimizeCoverage.Observe(res.Solution.Metrics.DemandCoverage)
		metrics.OptimizeRoutes.Observe(float64(len(res.Solution.Routes)))
		run.Success, run.Partial = true, res.Partial
		run.Routes = resp.Results.TotalRoutes
		run.Coverage = resp.Results.Metrics.DemandCoverage
		log.Printf("optimize done run=%s tenant=%s strategy=%s routes=%d coverage=%.4f partial=%t elapsed=%s",
			runID, tenant, res.Strategy, run.Routes, run.Coverage, res.Partial, elapsed.Round(time.Millisecond))
	}

	if b, err := json.Marshal(resp); err == nil {
		run.Response = b
	}
	// The request context may already be done; the record must still land.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Store.SaveRun(saveCtx, run); err != nil {
		log.Printf("optimize save run=%s: %v", runID, err)
	}

	summary := map[string]any{"runId": runID, "success": resp.Success}
	eventType, webhookType := EventRunCompleted, model.EventOptimizationCompleted
	if resp.Success {
		summary["totalRoutes"] = run.Routes
		summary["demandCoverage"] = run.Coverage
		summary["partial"] = run.Partial
		summary["strategy"] = string(resp.Results.Strategy)
	} else {
		summary["error"] = resp.Error
		summary["errorKind"] = string(resp.ErrorKind)
		eventType, webhookType = EventRunFailed, model.EventOptimizationFailed
	}
	publish(SSEEvent{Type: eventType, Data: summary})
	s.Pub.Emit(saveCtx, tenant, webhookType, summary)
	return resp, status
}

func parametersOf(p opt.Params) *model.Parameters {
	return &model.Parameters{
		FleetSize:       p.FleetSize,
		TargetLines:     p.TargetLines,
		KTransfers:      p.KTransfers,
		TransferPenalty: p.TransferPenalty,
		SpeedKph:        p.SpeedKph,
		Algorithm:       string(p.Algorithm),
		Seed:            p.Seed,
		TimeBudgetMs:    p.TimeBudget.Milliseconds(),
	}
}

// SampleHandler handles GET /v1/optimize/sample: the built-in dataset and a
// quick greedy run over it. Nothing is stored.
func (s *Server) SampleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	defaults, err := s.tenantOptimizer(r.Context(), p.Tenant)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Optimizer config unavailable", err.Error(), r.URL.Path)
		return
	}
	d := dataset.Sample()
	req := model.OptimizeRequest{
		Algorithm:     string(opt.AlgorithmGreedy),
		BuildingsData: d.Buildings,
		SourcesData:   d.Sources,
		StopsData:     d.Stops,
	}
	params := paramsFor(req, defaults)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	res, err := opt.Optimize(ctx, opt.Problem{Points: d.DemandPoints(), Stops: d.StopCandidates(), Params: params})
	report := opt.FailureReport(err)
	if err == nil {
		report = opt.BuildReport(res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": req, "result": report, "data_source": sourceSample})
}
