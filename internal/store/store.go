package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Datasets
	SaveDataset(ctx context.Context, tenantID string, kind dataset.Kind, d dataset.Dataset) (importID string, count int, err error)
	LoadDataset(ctx context.Context, tenantID string) (dataset.Dataset, error)
	ClearDataset(ctx context.Context, tenantID string, kind dataset.Kind) error

	// Optimization runs
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, tenantID, runID string) (Run, error)
	ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]Run, string, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Optimizer config per tenant
	GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error)
	SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// Run is a finished optimization with its serialized response.
type Run struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenantId"`
	Algorithm string          `json:"algorithm"`
	Success   bool            `json:"success"`
	Partial   bool            `json:"partial"`
	Routes    int             `json:"routes"`
	Coverage  float64         `json:"coverage"`
	CreatedAt time.Time       `json:"createdAt"`
	Response  json.RawMessage `json:"response,omitempty"`
}
