package opt

import "sort"

// RankHubs returns stop indices ordered by assigned demand, highest first,
// ties broken by stop ID.
func RankHubs(stops []StopCandidate) []int {
	idx := make([]int, len(stops))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := stops[idx[a]], stops[idx[b]]
		if sa.AssignedDemand != sb.AssignedDemand {
			return sa.AssignedDemand > sb.AssignedDemand
		}
		return sa.ID < sb.ID
	})
	return idx
}
