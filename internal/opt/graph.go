package opt

import (
	"math"
	"sort"
)

// Edge is a drivable link between two stops. It is derived per run and never stored.
type Edge struct {
	From    int
	To      int
	Km      float64
	Minutes float64
}

// Graph is an undirected stop adjacency graph indexed by stop position.
type Graph struct {
	Stops []StopCandidate
	adj   [][]Edge
}

// BuildGraph links every stop to its kNearest neighbours (in either
// direction) and to every stop within radiusKm. A negative radius adds no
// radius links.
func BuildGraph(stops []StopCandidate, speedKph float64, kNearest int, radiusKm float64) (*Graph, error) {
	const op = "build graph"
	n := len(stops)
	if !(speedKph > 0) {
		return nil, Errorf(KindInputValidation, op, "speed must be positive")
	}
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := haversineKm(stops[i].Lat, stops[i].Lng, stops[j].Lat, stops[j].Lng)
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return nil, Errorf(KindAlgorithm, op, "invalid distance between stops %q and %q", stops[i].ID, stops[j].ID)
			}
			dist[i][j], dist[j][i] = d, d
		}
	}
	linked := make([][]bool, n)
	for i := range linked {
		linked[i] = make([]bool, n)
	}
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		order = order[:0]
		for j := 0; j < n; j++ {
			if j != i {
				order = append(order, j)
			}
		}
		sort.SliceStable(order, func(a, b int) bool {
			da, db := dist[i][order[a]], dist[i][order[b]]
			if da != db {
				return da < db
			}
			return stops[order[a]].ID < stops[order[b]].ID
		})
		for r, j := range order {
			if r >= kNearest && dist[i][j] > radiusKm {
				break
			}
			linked[i][j], linked[j][i] = true, true
		}
	}
	g := &Graph{Stops: stops, adj: make([][]Edge, n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if linked[i][j] {
				g.adj[i] = append(g.adj[i], Edge{From: i, To: j, Km: dist[i][j], Minutes: travelMinutes(dist[i][j], speedKph)})
			}
		}
	}
	return g, nil
}

// Neighbors returns the edges leaving stop i ordered by destination index.
func (g *Graph) Neighbors(i int) []Edge { return g.adj[i] }

// Len is the number of stops in the graph.
func (g *Graph) Len() int { return len(g.adj) }
