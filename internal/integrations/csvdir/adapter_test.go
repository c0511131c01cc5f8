package csvdir

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/karthik-kata/StingerOps/internal/integrations"
	"github.com/karthik-kata/StingerOps/internal/opt"
)

func TestFetchReadsEveryKind(t *testing.T) {
	a := Adapter{Root: "mem", FS: fstest.MapFS{
		"buildings.csv": {Data: []byte("building_name,demand,latitude,longitude\nA,500,33.775,-84.396\n")},
		"stops.csv":     {Data: []byte("stop_name,stop_lat,stop_lon,capacity\nNorth,33.775,-84.396,40\nSouth,33.777,-84.394,\n")},
	}}
	var _ integrations.DatasetSource = a
	d, err := integrations.Load(context.Background(), a)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.Buildings) != 1 || len(d.Sources) != 0 || len(d.Stops) != 2 {
		t.Fatalf("rows = %d/%d/%d", len(d.Buildings), len(d.Sources), len(d.Stops))
	}
	if d.Stops[0].Capacity == nil || *d.Stops[0].Capacity != 40 || d.Stops[1].Capacity != nil {
		t.Fatalf("capacity not parsed: %+v", d.Stops)
	}
}

func TestLoadKeepsErrorKind(t *testing.T) {
	a := Adapter{Root: "mem", FS: fstest.MapFS{
		"stops.csv": {Data: []byte("stop_name,stop_lat,stop_lon\nA,1,1\nA,2,2\n")},
	}}
	_, err := integrations.Load(context.Background(), a)
	if !errors.Is(err, opt.ErrInputValidation) || !strings.Contains(err.Error(), "csv-dir mem") {
		t.Fatalf("got %v", err)
	}
}

func TestFetchHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Adapter{FS: fstest.MapFS{}}).Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}
