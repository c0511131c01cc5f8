package opt

import "math"

// DistributeDemand gives every demand point's full weight to its nearest stop
// by great-circle distance, breaking ties on the lowest stop ID. When maxKm is
// positive, points whose nearest stop lies further away are counted as
// uncovered instead. The input stops are not modified.
func DistributeDemand(points []DemandPoint, stops []StopCandidate, maxKm float64) ([]StopCandidate, float64, error) {
	const op = "distribute demand"
	if len(points) == 0 {
		return nil, 0, Errorf(KindDataAvailability, op, "no demand points supplied")
	}
	if len(stops) == 0 {
		return nil, 0, Errorf(KindDataAvailability, op, "no stop candidates supplied")
	}
	out := make([]StopCandidate, len(stops))
	copy(out, stops)
	for i := range out {
		out[i].AssignedDemand = 0
	}
	uncovered := 0.0
	for _, p := range points {
		if math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0) {
			return nil, 0, Errorf(KindAlgorithm, op, "demand point %q has non-finite weight", p.ID)
		}
		best, bestKm := -1, math.Inf(1)
		for j := range out {
			d := haversineKm(p.Lat, p.Lng, out[j].Lat, out[j].Lng)
			if math.IsNaN(d) {
				return nil, 0, Errorf(KindAlgorithm, op, "NaN distance between %q and stop %q", p.ID, out[j].ID)
			}
			if best < 0 || d < bestKm || (d == bestKm && out[j].ID < out[best].ID) {
				best, bestKm = j, d
			}
		}
		if maxKm > 0 && bestKm > maxKm {
			uncovered += p.Weight
			continue
		}
		out[best].AssignedDemand += p.Weight
	}
	return out, uncovered, nil
}
