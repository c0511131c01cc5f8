package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	datasets map[string]*dataset.Dataset     // tenant -> rows
	runs     map[string]Run                  // tenant|runId -> run
	runIDs   map[string][]string             // tenant -> run ids in insertion order
	subs     map[string][]model.Subscription // tenant -> subscriptions
	// Webhooks queue state
	deliveries         map[string]*memDelivery // id -> delivery state
	deliveryOrder      []string                // ids in enqueue order
	deliveriesByTenant map[string][]string     // tenant -> delivery ids
	dedup              map[string]string       // tenant|type|url|key -> delivery id
	optCfg             map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{
		datasets:           map[string]*dataset.Dataset{},
		runs:               map[string]Run{},
		runIDs:             map[string][]string{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
		dedup:              map[string]string{},
		optCfg:             map[string]map[string]any{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Datasets

func (m *Memory) SaveDataset(ctx context.Context, tenantID string, kind dataset.Kind, d dataset.Dataset) (string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.datasets[tenantID]
	if cur == nil {
		cur = &dataset.Dataset{}
		m.datasets[tenantID] = cur
	}
	var n int
	switch kind {
	case dataset.Buildings:
		cur.Buildings = append([]dataset.BuildingRow(nil), d.Buildings...)
		n = len(d.Buildings)
	case dataset.Sources:
		cur.Sources = append([]dataset.SourceRow(nil), d.Sources...)
		n = len(d.Sources)
	case dataset.Stops:
		cur.Stops = append([]dataset.StopRow(nil), d.Stops...)
		n = len(d.Stops)
	default:
		return "", 0, ErrNotFound
	}
	return "imp_" + uuid.New().String(), n, nil
}

func (m *Memory) LoadDataset(ctx context.Context, tenantID string) (dataset.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.datasets[tenantID]
	if cur == nil {
		return dataset.Dataset{}, nil
	}
	return dataset.Dataset{
		Buildings: append([]dataset.BuildingRow(nil), cur.Buildings...),
		Sources:   append([]dataset.SourceRow(nil), cur.Sources...),
		Stops:     append([]dataset.StopRow(nil), cur.Stops...),
	}, nil
}

func (m *Memory) ClearDataset(ctx context.Context, tenantID string, kind dataset.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.datasets[tenantID]
	if cur == nil {
		return nil
	}
	switch kind {
	case dataset.Buildings:
		cur.Buildings = nil
	case dataset.Sources:
		cur.Sources = nil
	case dataset.Stops:
		cur.Stops = nil
	}
	return nil
}

// Runs

func (m *Memory) SaveRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := run.TenantID + "|" + run.ID
	if _, exists := m.runs[key]; !exists {
		m.runIDs[run.TenantID] = append(m.runIDs[run.TenantID], run.ID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[key] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, runID string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[tenantID+"|"+runID]
	if !ok {
		return Run{}, ErrNotFound
	}
	return r, nil
}

// ListRuns returns runs newest first without their response bodies.
func (m *Memory) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.runIDs[tenantID]
	if limit <= 0 {
		limit = 100
	}
	start := len(ids) - 1
	if cursor != "" {
		for i := len(ids) - 1; i >= 0; i-- {
			if ids[i] == cursor {
				start = i - 1
				break
			}
		}
	}
	out := []Run{}
	var next string
	for i := start; i >= 0 && len(out) < limit; i-- {
		r := m.runs[tenantID+"|"+ids[i]]
		r.Response = nil
		out = append(out, r)
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

// Subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		if subscribed(s.Events, eventType) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription{}, list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	if len(out) == len(arr) {
		return ErrNotFound
	}
	m.subs[tenantID] = out
	return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dk := tenantID + "|" + eventType + "|" + url + "|" + computeDedupKey(payload)
	if id, dup := m.dedup[dk]; dup {
		return id, nil
	}
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveryOrder = append(m.deliveryOrder, id)
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	m.dedup[dk] = id
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var due []*memDelivery
	for _, id := range m.deliveryOrder {
		d := m.deliveries[id]
		if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
			due = append(due, d)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	out := []WebhookDelivery{}
	for _, d := range due {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, d.WebhookDelivery)
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(1 * time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	ids := m.deliveriesByTenant[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []map[string]any{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		d := m.deliveries[ids[i]]
		next = ids[i]
		if status != "" && d.Status != status {
			continue
		}
		item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
		if !d.NextAttemptAt.IsZero() {
			item["nextAttemptAt"] = d.NextAttemptAt
		}
		if d.LastError != "" {
			item["lastError"] = d.LastError
		}
		if d.ResponseCode != 0 {
			item["responseCode"] = d.ResponseCode
		}
		out = append(out, item)
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil || d.TenantID != tenantID {
		return ErrNotFound
	}
	d.Status = DeliveryPending
	d.NextAttemptAt = time.Now()
	return nil
}

// Optimizer config

func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.optCfg[tenantID]
	if !ok {
		return nil, nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optCfg[tenantID] = cfg
	return nil
}
