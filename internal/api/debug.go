package api

import (
	"net/http"
	"time"

	"github.com/karthik-kata/StingerOps/internal/buildinfo"
)

// DebugJSON reports build info and the non-secret parts of the configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 c.Port,
			"AUTH_MODE":            c.AuthMode,
			"RATE_RPS":             c.RateRPS,
			"RATE_BURST":           c.RateBurst,
			"WEBHOOK_MAX_ATTEMPTS": c.WebhookMaxAttempts,
			"OPTIMIZE_TIMEOUT":     c.OptimizeTimeout.String(),
			"HAS_DATABASE_URL":     c.DatabaseURL != "",
			"HAS_REDIS_URL":        c.RedisURL != "",
		},
		"optimizer": c.Optimizer,
	})
}
