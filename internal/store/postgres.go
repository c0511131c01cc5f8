package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent so the whole set runs on each start.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// Datasets

func (p *Postgres) SaveDataset(ctx context.Context, tenantID string, kind dataset.Kind, d dataset.Dataset) (string, int, error) {
	rows, n, err := datasetRows(kind, d)
	if err != nil {
		return "", 0, err
	}
	importID := "imp_" + uuid.New().String()
	_, err = p.db.ExecContext(ctx, `INSERT INTO datasets (tenant_id, kind, import_id, row_count, rows, updated_at) VALUES ($1,$2,$3,$4,$5,now())
        ON CONFLICT (tenant_id, kind) DO UPDATE SET import_id=$3, row_count=$4, rows=$5, updated_at=now()`, tenantID, string(kind), importID, n, rows)
	if err != nil {
		return "", 0, err
	}
	return importID, n, nil
}

func (p *Postgres) LoadDataset(ctx context.Context, tenantID string) (dataset.Dataset, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT kind, rows FROM datasets WHERE tenant_id=$1`, tenantID)
	if err != nil {
		return dataset.Dataset{}, err
	}
	defer rows.Close()
	var d dataset.Dataset
	for rows.Next() {
		var kind string
		var js []byte
		if err := rows.Scan(&kind, &js); err != nil {
			return dataset.Dataset{}, err
		}
		if err := decodeRows(dataset.Kind(kind), js, &d); err != nil {
			return dataset.Dataset{}, err
		}
	}
	return d, rows.Err()
}

func (p *Postgres) ClearDataset(ctx context.Context, tenantID string, kind dataset.Kind) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM datasets WHERE tenant_id=$1 AND kind=$2`, tenantID, string(kind))
	return err
}

// datasetRows marshals the rows of one kind.
func datasetRows(kind dataset.Kind, d dataset.Dataset) ([]byte, int, error) {
	var v any
	var n int
	switch kind {
	case dataset.Buildings:
		v, n = d.Buildings, len(d.Buildings)
	case dataset.Sources:
		v, n = d.Sources, len(d.Sources)
	case dataset.Stops:
		v, n = d.Stops, len(d.Stops)
	default:
		return nil, 0, fmt.Errorf("unknown dataset kind %q", kind)
	}
	if n == 0 {
		return []byte("[]"), 0, nil
	}
	b, err := json.Marshal(v)
	return b, n, err
}

func decodeRows(kind dataset.Kind, js []byte, d *dataset.Dataset) error {
	switch kind {
	case dataset.Buildings:
		return json.Unmarshal(js, &d.Buildings)
	case dataset.Sources:
		return json.Unmarshal(js, &d.Sources)
	case dataset.Stops:
		return json.Unmarshal(js, &d.Stops)
	}
	return nil
}

// Runs

func (p *Postgres) SaveRun(ctx context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	var resp any
	if len(run.Response) > 0 {
		resp = []byte(run.Response)
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO optimization_runs (id, tenant_id, algorithm, success, partial, routes, coverage, response, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (tenant_id, id) DO UPDATE SET algorithm=$3, success=$4, partial=$5, routes=$6, coverage=$7, response=$8`,
		run.ID, run.TenantID, run.Algorithm, run.Success, run.Partial, run.Routes, run.Coverage, resp, run.CreatedAt)
	return err
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, runID string) (Run, error) {
	r := Run{TenantID: tenantID}
	var resp []byte
	err := p.db.QueryRowContext(ctx, `SELECT id, algorithm, success, partial, routes, coverage, response, created_at FROM optimization_runs WHERE tenant_id=$1 AND id=$2`, tenantID, runID).
		Scan(&r.ID, &r.Algorithm, &r.Success, &r.Partial, &r.Routes, &r.Coverage, &resp, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	r.Response = resp
	return r, nil
}

// ListRuns pages newest first; the cursor is the last run id returned.
func (p *Postgres) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]Run, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id, algorithm, success, partial, routes, coverage, created_at FROM optimization_runs
            WHERE tenant_id=$1 AND (created_at, id) < (SELECT created_at, id FROM optimization_runs WHERE tenant_id=$1 AND id=$2)
            ORDER BY created_at DESC, id DESC LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id, algorithm, success, partial, routes, coverage, created_at FROM optimization_runs
            WHERE tenant_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Run{}
	var last string
	for rows.Next() {
		r := Run{TenantID: tenantID}
		if err := rows.Scan(&r.ID, &r.Algorithm, &r.Success, &r.Partial, &r.Routes, &r.Coverage, &r.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, r)
		last = r.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, err := json.Marshal(req.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, nullIfEmpty(req.Secret))
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	want, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions
        WHERE tenant_id=$1 AND (events @> $2::jsonb OR events @> '["*"]'::jsonb) ORDER BY created_at`, tenantID, string(want))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		s := model.Subscription{TenantID: tenantID}
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Subscription{}
	var last string
	for rows.Next() {
		s := model.Subscription{TenantID: tenantID}
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, "", err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`,
			nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url, COALESCE(response_code,0) FROM webhook_deliveries WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(` AND id::text > $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts, code int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url, &code); err != nil {
			return nil, "", err
		}
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid {
			m["nextAttemptAt"] = nextAt.Time
		}
		if lastErr != "" {
			m["lastError"] = lastErr
		}
		if code != 0 {
			m["responseCode"] = code
		}
		out = append(out, m)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Optimizer config

func (p *Postgres) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	var js []byte
	if err := p.db.QueryRowContext(ctx, `SELECT config FROM optimizer_config WHERE tenant_id=$1`, tenantID).Scan(&js); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Postgres) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO optimizer_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
