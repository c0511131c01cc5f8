// Package csvdir reads the three input tables from a directory of CSV files
// named buildings.csv, sources.csv and stops.csv.
package csvdir

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/karthik-kata/StingerOps/internal/dataset"
)

// Adapter implements integrations.DatasetSource over a file system.
// A missing file leaves that kind empty.
type Adapter struct {
	FS   fs.FS
	Root string
}

// New reads from dir on the local disk.
func New(dir string) Adapter { return Adapter{FS: os.DirFS(dir), Root: dir} }

func (a Adapter) Name() string { return "csv-dir " + a.Root }

func (a Adapter) Fetch(ctx context.Context) (dataset.Dataset, error) {
	var d dataset.Dataset
	for _, kind := range dataset.Kinds {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		f, err := a.FS.Open(string(kind) + ".csv")
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return d, err
		}
		err = d.ReadCSV(kind, f)
		_ = f.Close()
		if err != nil {
			return d, err
		}
	}
	return d, nil
}
