package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karthik-kata/StingerOps/internal/api"
	"github.com/karthik-kata/StingerOps/internal/config"
	"github.com/karthik-kata/StingerOps/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	metrics.RegisterDefault()
	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(srvDeps.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := srvDeps.NewWebhookWorker()
	worker.Start()

	go func() {
		log.Printf("API listening on %s (optimizer %s)", addr, cfg.Optimizer.Params())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.OptimizeTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	worker.Close()
	if c, ok := srvDeps.Broker.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if c, ok := srvDeps.Store.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}
