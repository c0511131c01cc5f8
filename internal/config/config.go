// Package config loads service settings from the environment, an optional
// .env file, and an optional YAML file of optimizer defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/karthik-kata/StingerOps/internal/opt"
)

// Config is the process configuration.
type Config struct {
	Port               string
	DatabaseURL        string
	Migrate            bool
	RedisURL           string
	AuthMode           string
	AuthHMACSecret     string
	RateRPS            float64
	RateBurst          int
	WebhookMaxAttempts int
	OptimizeTimeout    time.Duration
	Optimizer          Optimizer
}

// Optimizer holds the default invocation parameters. Zero values in the
// YAML file keep the built-in defaults.
type Optimizer struct {
	FleetSize       int      `yaml:"fleet_size" json:"fleet_size" validate:"gte=1"`
	TargetLines     int      `yaml:"target_lines" json:"target_lines" validate:"gte=1"`
	KTransfers      *int     `yaml:"k_transfers" json:"k_transfers" validate:"omitempty,gte=0,lte=10"`
	TransferPenalty *float64 `yaml:"transfer_penalty" json:"transfer_penalty" validate:"omitempty,gte=0"`
	SpeedKph        float64  `yaml:"speed_kmh" json:"speed_kmh" validate:"gt=0"`
	Algorithm       string   `yaml:"algorithm" json:"algorithm" validate:"oneof=greedy genetic both"`
	MaxAssignKm     float64  `yaml:"max_assign_km" json:"max_assign_km" validate:"gte=0"`
	KNearest        int      `yaml:"k_nearest" json:"k_nearest" validate:"gte=1"`
	NeighborRadius  float64  `yaml:"neighbor_radius_km" json:"neighbor_radius_km" validate:"gte=-1"` // -1: k nearest only
	MaxCycleMinutes float64  `yaml:"max_cycle_minutes" json:"max_cycle_minutes" validate:"gt=0"`
	HeadwayMinutes  float64  `yaml:"headway_minutes" json:"headway_minutes" validate:"gt=0"`
	MaxIterations   int      `yaml:"max_iterations" json:"max_iterations" validate:"gte=1"`
	Generations     int      `yaml:"generations" json:"generations" validate:"gte=1"`
	PopulationSize  int      `yaml:"population_size" json:"population_size" validate:"gte=2"`
	Patience        int      `yaml:"patience" json:"patience" validate:"gte=1"`
	MutationRate    float64  `yaml:"mutation_rate" json:"mutation_rate" validate:"gte=0,lte=1"`
	TimeBudgetMs    int      `yaml:"time_budget_ms" json:"time_budget_ms" validate:"gte=1"`
}

var validate = validator.New()

// Load reads .env (when present), the environment, and OPTIMIZER_CONFIG.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: .env ignored: %v", err)
	}
	c := Config{
		Port:               envOr("PORT", "8080"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Migrate:            os.Getenv("DB_MIGRATE") != "false",
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		AuthMode:           strings.ToLower(envOr("AUTH_MODE", "dev")),
		AuthHMACSecret:     os.Getenv("AUTH_HMAC_SECRET"),
		RateRPS:            2,
		RateBurst:          4,
		WebhookMaxAttempts: 10,
		OptimizeTimeout:    60 * time.Second,
		Optimizer:          DefaultOptimizer(),
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return c, fmt.Errorf("RATE_RPS: invalid value %q", v)
		}
		c.RateRPS = f
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c, fmt.Errorf("RATE_BURST: invalid value %q", v)
		}
		c.RateBurst = n
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WebhookMaxAttempts = n
		}
	}
	if v := os.Getenv("OPTIMIZE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return c, fmt.Errorf("OPTIMIZE_TIMEOUT: invalid duration %q", v)
		}
		c.OptimizeTimeout = d
	}
	if path := os.Getenv("OPTIMIZER_CONFIG"); path != "" {
		o, err := LoadOptimizerFile(path)
		if err != nil {
			return c, err
		}
		c.Optimizer = o
	}
	return c, nil
}

// DefaultOptimizer mirrors opt.DefaultParams.
func DefaultOptimizer() Optimizer {
	p := opt.DefaultParams()
	k, pen := p.KTransfers, p.TransferPenalty
	return Optimizer{
		FleetSize:       p.FleetSize,
		TargetLines:     p.TargetLines,
		KTransfers:      &k,
		TransferPenalty: &pen,
		SpeedKph:        p.SpeedKph,
		Algorithm:       string(p.Algorithm),
		MaxAssignKm:     p.MaxAssignKm,
		KNearest:        p.KNearest,
		NeighborRadius:  p.NeighborRadiusKm,
		MaxCycleMinutes: p.MaxCycleMinutes,
		HeadwayMinutes:  p.HeadwayMinutes,
		MaxIterations:   p.MaxIterations,
		Generations:     p.Generations,
		PopulationSize:  p.PopulationSize,
		Patience:        p.Patience,
		MutationRate:    p.MutationRate,
		TimeBudgetMs:    int(p.TimeBudget / time.Millisecond),
	}
}

// LoadOptimizerFile decodes a YAML defaults file over DefaultOptimizer and
// validates the result.
func LoadOptimizerFile(path string) (Optimizer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Optimizer{}, fmt.Errorf("optimizer config: %w", err)
	}
	return ParseOptimizer(b)
}

// ParseOptimizer decodes YAML over the defaults. Unknown keys are rejected.
func ParseOptimizer(b []byte) (Optimizer, error) {
	o := DefaultOptimizer()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return Optimizer{}, fmt.Errorf("optimizer config: %w", err)
	}
	if err := o.Validate(); err != nil {
		return Optimizer{}, err
	}
	return o, nil
}

// Validate checks the struct tags.
func (o Optimizer) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("optimizer config: %s failed %s %s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("optimizer config: %w", err)
	}
	return nil
}

// Params converts the defaults into engine parameters.
func (o Optimizer) Params() opt.Params {
	p := opt.DefaultParams()
	p.FleetSize = o.FleetSize
	p.TargetLines = o.TargetLines
	if o.KTransfers != nil {
		p.KTransfers = *o.KTransfers
	}
	if o.TransferPenalty != nil {
		p.TransferPenalty = *o.TransferPenalty
	}
	p.SpeedKph = o.SpeedKph
	p.Algorithm = opt.Algorithm(o.Algorithm)
	p.MaxAssignKm = o.MaxAssignKm
	p.KNearest = o.KNearest
	p.NeighborRadiusKm = o.NeighborRadius
	p.MaxCycleMinutes = o.MaxCycleMinutes
	p.HeadwayMinutes = o.HeadwayMinutes
	p.MaxIterations = o.MaxIterations
	p.Generations = o.Generations
	p.PopulationSize = o.PopulationSize
	p.Patience = o.Patience
	p.MutationRate = o.MutationRate
	p.TimeBudget = time.Duration(o.TimeBudgetMs) * time.Millisecond
	return p
}

func envOr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}
