//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/karthik-kata/StingerOps/internal/dataset"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	tenant := "t_integration"
	if _, n, err := p.SaveDataset(context.Background(), tenant, dataset.Stops, dataset.Sample()); err != nil || n != 5 {
		t.Fatalf("SaveDataset: n=%d err=%v", n, err)
	}
	d, err := p.LoadDataset(context.Background(), tenant)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(d.Stops) != 5 {
		t.Fatalf("stops = %d", len(d.Stops))
	}
	if err := p.ClearDataset(context.Background(), tenant, dataset.Stops); err != nil {
		t.Fatalf("ClearDataset: %v", err)
	}
}
