// Package integrations connects the planner to external sources of input
// tables.
package integrations

import (
	"context"
	"fmt"

	"github.com/karthik-kata/StingerOps/internal/dataset"
)

// DatasetSource supplies buildings, sources and stops from an external system.
type DatasetSource interface {
	Name() string
	Fetch(ctx context.Context) (dataset.Dataset, error)
}

// Load fetches from src and validates the rows. Errors name the source and
// keep their optimizer kind.
func Load(ctx context.Context, src DatasetSource) (dataset.Dataset, error) {
	d, err := src.Fetch(ctx)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("%s: %w", src.Name(), err)
	}
	if err := d.Validate(); err != nil {
		return dataset.Dataset{}, fmt.Errorf("%s: %w", src.Name(), err)
	}
	return d, nil
}
