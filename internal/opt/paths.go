package opt

import (
	"container/heap"
	"math"
)

// PathSegment is the best bounded-transfer path between two stops.
type PathSegment struct {
	From          int
	To            int
	Stops         []int // From..To inclusive
	Hops          int   // edges traversed
	Transfers     int   // Hops-1
	TravelMinutes float64
	TotalMinutes  float64 // travel plus transfer penalties
}

// PathSolver answers bounded-hop shortest path queries over a Graph. A path
// with h edges uses h-1 transfers; paths above kTransfers transfers are never
// produced. Results are memoised per source for the lifetime of one run.
type PathSolver struct {
	g       *Graph
	k       int
	penalty float64
	cache   map[int][]*PathSegment
}

func NewPathSolver(g *Graph, kTransfers int, penalty float64) *PathSolver {
	return &PathSolver{g: g, k: kTransfers, penalty: penalty, cache: map[int][]*PathSegment{}}
}

// Between returns the path from a to b, or nil when b is not reachable
// within the transfer bound.
func (ps *PathSolver) Between(a, b int) *PathSegment {
	if a == b {
		return nil
	}
	return ps.From(a)[b]
}

// LegMinutes is Between(a, b).TotalMinutes, or +Inf when unreachable.
func (ps *PathSolver) LegMinutes(a, b int) float64 {
	if seg := ps.Between(a, b); seg != nil {
		return seg.TotalMinutes
	}
	return math.Inf(1)
}

// From returns, indexed by destination, the best path from src to every
// other stop; unreachable destinations and src itself are nil.
func (ps *PathSolver) From(src int) []*PathSegment {
	if out, ok := ps.cache[src]; ok {
		return out
	}
	out := ps.solve(src)
	ps.cache[src] = out
	return out
}

type pathState struct {
	node  int
	hops  int
	total float64
}

type stateQueue []pathState

func (q stateQueue) Len() int { return len(q) }
func (q stateQueue) Less(i, j int) bool {
	if q[i].total != q[j].total {
		return q[i].total < q[j].total
	}
	if q[i].hops != q[j].hops {
		return q[i].hops < q[j].hops
	}
	return q[i].node < q[j].node
}
func (q stateQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *stateQueue) Push(x any)   { *q = append(*q, x.(pathState)) }
func (q *stateQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

type prevState struct{ node, hops int }

func (ps *PathSolver) solve(src int) []*PathSegment {
	n := ps.g.Len()
	maxHops := ps.k + 1
	dist := make([][]float64, n)
	prev := make([][]prevState, n)
	done := make([][]bool, n)
	for i := range dist {
		dist[i] = make([]float64, maxHops+1)
		prev[i] = make([]prevState, maxHops+1)
		done[i] = make([]bool, maxHops+1)
		for h := range dist[i] {
			dist[i][h] = math.Inf(1)
			prev[i][h] = prevState{-1, -1}
		}
	}
	dist[src][0] = 0
	q := &stateQueue{{node: src}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(pathState)
		if done[cur.node][cur.hops] {
			continue
		}
		done[cur.node][cur.hops] = true
		if cur.hops == maxHops {
			continue
		}
		for _, e := range ps.g.Neighbors(cur.node) {
			if e.To == src {
				continue
			}
			nh := cur.hops + 1
			add := e.Minutes
			if cur.hops >= 1 {
				add += ps.penalty
			}
			nd := cur.total + add
			if nd < dist[e.To][nh] {
				dist[e.To][nh] = nd
				prev[e.To][nh] = prevState{cur.node, cur.hops}
				heap.Push(q, pathState{node: e.To, hops: nh, total: nd})
			}
		}
	}

	out := make([]*PathSegment, n)
	for dst := 0; dst < n; dst++ {
		if dst == src {
			continue
		}
		bestH := -1
		for h := 1; h <= maxHops; h++ {
			if math.IsInf(dist[dst][h], 1) {
				continue
			}
			// equal time: fewer transfers wins, which is also fewer stops
			if bestH < 0 || dist[dst][h] < dist[dst][bestH] {
				bestH = h
			}
		}
		if bestH < 0 {
			continue
		}
		stops := make([]int, bestH+1)
		at := prevState{dst, bestH}
		for i := bestH; i >= 0; i-- {
			stops[i] = at.node
			at = prev[at.node][at.hops]
		}
		travel := 0.0
		for i := 0; i+1 < len(stops); i++ {
			travel += edgeMinutes(ps.g, stops[i], stops[i+1])
		}
		out[dst] = &PathSegment{
			From:          src,
			To:            dst,
			Stops:         stops,
			Hops:          bestH,
			Transfers:     bestH - 1,
			TravelMinutes: travel,
			TotalMinutes:  dist[dst][bestH],
		}
	}
	return out
}

func edgeMinutes(g *Graph, a, b int) float64 {
	for _, e := range g.Neighbors(a) {
		if e.To == b {
			return e.Minutes
		}
	}
	return math.Inf(1)
}
