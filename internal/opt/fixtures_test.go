package opt

import (
	"fmt"
	"math/rand"
	"time"
)

// gridProblem lays out an n x n grid of stops about 400m apart and scatters
// weighted demand points over it.
func gridProblem(n, points int, seed int64) ([]DemandPoint, []StopCandidate) {
	rng := rand.New(rand.NewSource(seed))
	const step = 0.004
	var stops []StopCandidate
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			id := fmt.Sprintf("s%02d_%02d", i, j)
			stops = append(stops, StopCandidate{ID: id, Name: "Stop " + id, Lat: 33.77 + float64(i)*step, Lng: -84.40 + float64(j)*step})
		}
	}
	span := step * float64(n-1)
	var pts []DemandPoint
	for k := 0; k < points; k++ {
		pts = append(pts, DemandPoint{
			ID:     fmt.Sprintf("b%03d", k),
			Name:   fmt.Sprintf("Building %d", k),
			Lat:    33.77 + rng.Float64()*span,
			Lng:    -84.40 + rng.Float64()*span,
			Weight: float64(10 + rng.Intn(500)),
		})
	}
	return pts, stops
}

func testParams() Params {
	p := DefaultParams()
	p.TimeBudget = time.Minute
	p.Generations = 25
	p.PopulationSize = 16
	p.Seed = 42
	return p
}
