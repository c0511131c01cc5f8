// Command optimize runs one route optimization from the command line and
// prints the JSON result envelope.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/karthik-kata/StingerOps/internal/config"
	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/integrations"
	"github.com/karthik-kata/StingerOps/internal/integrations/csvdir"
	"github.com/karthik-kata/StingerOps/internal/opt"
)

func main() {
	dir := flag.String("data", "", "directory with buildings.csv, sources.csv, stops.csv (empty: built-in sample)")
	cfgPath := flag.String("config", os.Getenv("OPTIMIZER_CONFIG"), "YAML optimizer defaults")
	fleet := flag.Int("fleet", 0, "fleet_size")
	lines := flag.Int("lines", 0, "target_lines")
	k := flag.Int("k", 0, "k_transfers")
	penalty := flag.Float64("penalty", 0, "transfer_penalty in minutes")
	speed := flag.Float64("speed", 0, "speed_kmh")
	algorithm := flag.String("algorithm", "", "greedy|genetic|both")
	seed := flag.Int64("seed", 0, "genetic seed (0: time-derived)")
	budget := flag.Duration("budget", 0, "time budget, e.g. 30s")
	progress := flag.Bool("progress", false, "log refinement progress to stderr")
	flag.Parse()

	defaults := config.DefaultOptimizer()
	if *cfgPath != "" {
		var err error
		if defaults, err = config.LoadOptimizerFile(*cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	p := defaults.Params()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fleet":
			p.FleetSize = *fleet
		case "lines":
			p.TargetLines = *lines
		case "k":
			p.KTransfers = *k
		case "penalty":
			p.TransferPenalty = *penalty
		case "speed":
			p.SpeedKph = *speed
		case "algorithm":
			p.Algorithm = opt.Algorithm(*algorithm)
		case "budget":
			p.TimeBudget = *budget
		}
	})
	p.Seed = *seed

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := dataset.Sample()
	if *dir != "" {
		var err error
		if d, err = integrations.Load(ctx, csvdir.New(*dir)); err != nil {
			emit(opt.FailureReport(err))
			os.Exit(1)
		}
	}

	pr := opt.Problem{Points: d.DemandPoints(), Stops: d.StopCandidates(), Params: p}
	if *progress {
		pr.Progress = func(pg opt.Progress) {
			log.Printf("%s %d fitness=%.4f coverage=%.4f routes=%d", pg.Stage, pg.Iteration, pg.BestFitness, pg.Coverage, pg.Routes)
		}
	}
	started := time.Now()
	res, err := opt.Optimize(ctx, pr)
	if err != nil {
		emit(opt.FailureReport(err))
		os.Exit(1)
	}
	log.Printf("done strategy=%s routes=%d partial=%t seed=%d elapsed=%s",
		res.Strategy, len(res.Solution.Routes), res.Partial, res.Stats.Seed, time.Since(started).Round(time.Millisecond))
	emit(opt.BuildReport(res))
}

func emit(rep opt.Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		log.Fatal(err)
	}
}
