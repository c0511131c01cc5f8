package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/karthik-kata/StingerOps/internal/auth"
	"github.com/karthik-kata/StingerOps/internal/config"
	"github.com/karthik-kata/StingerOps/internal/metrics"
	"github.com/karthik-kata/StingerOps/internal/store"
	"github.com/karthik-kata/StingerOps/internal/webhooks"
)

type Server struct {
	Config  config.Config
	Store   store.Store
	Pub     *webhooks.Publisher
	Auth    *auth.Verifier
	Broker  EventBroker
	Runs    *RunCache
	Limiter *TenantLimiter
}

// NewServer wires dependencies from cfg. An empty DATABASE_URL selects the
// in-memory store and an empty REDIS_URL the in-process broker.
func NewServer(cfg config.Config) (*Server, error) {
	if cfg.Optimizer.FleetSize == 0 {
		cfg.Optimizer = config.DefaultOptimizer()
	}
	var s store.Store
	if cfg.DatabaseURL == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := sp.Migrate(ctx)
			cancel()
			if err != nil {
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Printf("redis broker unavailable, using in-memory broker: %v", err)
		} else {
			broker = rb
		}
	}
	return &Server{
		Config:  cfg,
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Auth:    auth.NewVerifier(auth.Options{Mode: cfg.AuthMode, HMACSecret: cfg.AuthHMACSecret}),
		Broker:  broker,
		Runs:    NewRunCache(15 * time.Minute),
		Limiter: NewTenantLimiter(cfg.RateRPS, cfg.RateBurst),
	}, nil
}

// Routes registers every endpoint on a new ServeMux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, metrics.Instrument(pattern, h))
	}

	// Optimization
	handle("/v1/optimize", s.OptimizeHandler)
	handle("/v1/optimize/sample", s.SampleHandler)
	handle("/v1/optimizations", s.RunsIndexHandler)
	handle("/v1/optimizations/", s.RunByIDHandler) // includes /events/stream
	handle("/v1/optimizations/ws", s.ProgressWSHandler)

	// Datasets
	handle("/v1/datasets/", s.DatasetsHandler)

	// Optimizer config
	handle("/v1/optimizer/config", s.OptimizerConfigHandler)
	handle("/v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)

	// Subscriptions and deliveries
	handle("/v1/subscriptions", s.SubscriptionsHandler)
	handle("/v1/subscriptions/", s.SubscriptionByIDHandler)
	handle("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
	handle("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)

	// Docs
	handle("/openapi.yaml", s.OpenAPIHandler)
	handle("/openapi.json", s.OpenAPIJSONHandler)
	handle("/docs", s.DocsHandler)

	// Health
	handle("/healthz", s.HealthHandler)
	handle("/readyz", s.ReadyHandler)
	handle("/debug/info", s.DebugJSON)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.WebhookMaxAttempts)
}
