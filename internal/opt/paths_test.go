package opt

import (
	"math"
	"testing"
)

// lineStops are four stops on the equator with widening gaps (~1.1-1.3km),
// so every stop's single nearest neighbour is unambiguous.
func lineStops() []StopCandidate {
	return []StopCandidate{
		{ID: "s0", Lat: 0, Lng: 0},
		{ID: "s1", Lat: 0, Lng: 0.01},
		{ID: "s2", Lat: 0, Lng: 0.021},
		{ID: "s3", Lat: 0, Lng: 0.033},
	}
}

func lineGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := BuildGraph(lineStops(), 30, 1, 0.5)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	return g
}

func TestBuildGraphNearestAndRadius(t *testing.T) {
	g := lineGraph(t)
	if n := len(g.Neighbors(0)); n != 1 {
		t.Fatalf("s0 neighbors = %d, want 1", n)
	}
	if n := len(g.Neighbors(1)); n != 2 {
		t.Fatalf("s1 neighbors = %d, want 2", n)
	}
	wide, err := BuildGraph(lineStops(), 30, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(wide.Neighbors(0)); n != 3 {
		t.Fatalf("radius 5km: s0 neighbors = %d, want 3", n)
	}
	nearestOnly, err := BuildGraph(lineStops(), 30, 1, -1)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(nearestOnly.Neighbors(0)); n != 1 {
		t.Fatalf("no radius: s0 neighbors = %d, want 1", n)
	}
}

func TestNeighborRadiusNormalization(t *testing.T) {
	p := DefaultParams()
	p.NeighborRadiusKm = -1
	if got := p.normalized().NeighborRadiusKm; got != -1 {
		t.Fatalf("disabled radius became %v", got)
	}
	p.NeighborRadiusKm = 0
	if got := p.normalized().NeighborRadiusKm; got != DefaultParams().NeighborRadiusKm {
		t.Fatalf("zero radius became %v", got)
	}
}

func TestPathSolverHopBound(t *testing.T) {
	g := lineGraph(t)
	edge := g.Neighbors(0)[0].Minutes

	from := NewPathSolver(g, 0, 5).From(0)
	if from[1] == nil || from[2] != nil || from[3] != nil {
		t.Fatalf("k=0 reach: %v %v %v", from[1] != nil, from[2] != nil, from[3] != nil)
	}
	if from[1].Hops != 1 || from[1].Transfers != 0 || math.Abs(from[1].TotalMinutes-edge) > 1e-9 {
		t.Fatalf("direct segment = %+v", *from[1])
	}

	from = NewPathSolver(g, 1, 5).From(0)
	if from[2] == nil || from[3] != nil {
		t.Fatalf("k=1 should reach s2 but not s3")
	}
	seg := from[2]
	if seg.Transfers != 1 || len(seg.Stops) != 3 {
		t.Fatalf("two-hop segment = %+v", *seg)
	}
	if want := seg.TravelMinutes + 5; math.Abs(seg.TotalMinutes-want) > 1e-9 {
		t.Fatalf("total = %v, want %v", seg.TotalMinutes, want)
	}

	from = NewPathSolver(g, 2, 5).From(0)
	if from[3] == nil || from[3].Transfers != 2 {
		t.Fatalf("k=2 should reach s3 with 2 transfers")
	}
}

func TestPathSolverPenaltyFavoursDirectEdge(t *testing.T) {
	// all three stops are linked; the two-hop path through s1 is about as
	// long as the direct edge, so the transfer penalty decides.
	g, err := BuildGraph(lineStops()[:3], 30, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	seg := NewPathSolver(g, 2, 5).Between(0, 2)
	if seg == nil || seg.Hops != 1 || seg.Transfers != 0 {
		t.Fatalf("segment = %+v, want direct", seg)
	}
	if math.Abs(seg.TotalMinutes-seg.TravelMinutes) > 1e-9 {
		t.Fatalf("direct segment must carry no penalty: %+v", *seg)
	}
}

func TestImproveCycleUntangles(t *testing.T) {
	// square visited as a bow-tie
	stops := []StopCandidate{
		{ID: "a", Lat: 0, Lng: 0},
		{ID: "b", Lat: 0, Lng: 0.01},
		{ID: "c", Lat: 0.01, Lng: 0.01},
		{ID: "d", Lat: 0.01, Lng: 0},
	}
	leg := func(i, j int) float64 {
		return haversineKm(stops[i].Lat, stops[i].Lng, stops[j].Lat, stops[j].Lng)
	}
	tangled := []int{0, 2, 1, 3}
	got := improveCycle(tangled, leg, 10)
	if got[0] != 0 {
		t.Fatalf("hub moved: %v", got)
	}
	if cycleCost(got, leg) >= cycleCost(tangled, leg) {
		t.Fatalf("no improvement: %v", got)
	}
}
