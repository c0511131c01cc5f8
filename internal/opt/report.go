package opt

import (
	"fmt"
	"math"
)

// Report is the serializable outcome of a run.
type Report struct {
	Success   bool           `json:"success"`
	Results   *ReportResults `json:"results,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind Kind           `json:"error_kind,omitempty"`
}

type ReportResults struct {
	TotalRoutes     int           `json:"total_routes"`
	Metrics         ReportMetrics `json:"metrics"`
	Routes          []ReportRoute `json:"routes"`
	Strategy        Algorithm     `json:"strategy"`
	Partial         bool          `json:"partial"`
	UncoveredDemand float64       `json:"uncovered_demand"`
	FleetUsed       int           `json:"fleet_used"`
	Warnings        []string      `json:"warnings,omitempty"`
}

type ReportMetrics struct {
	TotalCost      float64 `json:"total_cost"`
	DemandCoverage float64 `json:"demand_coverage"`
	Efficiency     float64 `json:"efficiency"`
}

type ReportRoute struct {
	RouteID       string       `json:"route_id"`
	RouteNumber   int          `json:"route_number"`
	StopsCount    int          `json:"stops_count"`
	CycleMinutes  float64      `json:"cycle_minutes"`
	Efficiency    float64      `json:"efficiency"`
	DemandCovered float64      `json:"demand_covered"`
	Buses         int          `json:"buses"`
	MaxTransfers  int          `json:"max_transfers"`
	Stops         []ReportStop `json:"stops"`
}

type ReportStop struct {
	StopOrder int     `json:"stop_order"`
	StopName  string  `json:"stop_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BuildReport renders a Result. Route ids are positional so identical runs
// serialize identically.
func BuildReport(res Result) Report {
	sol := res.Solution
	out := &ReportResults{
		TotalRoutes: len(sol.Routes),
		Metrics: ReportMetrics{
			TotalCost:      round(sol.Metrics.TotalCost, 4),
			DemandCoverage: round(sol.Metrics.DemandCoverage, 6),
			Efficiency:     round(sol.Metrics.Efficiency, 6),
		},
		Routes:          make([]ReportRoute, 0, len(sol.Routes)),
		Strategy:        res.Strategy,
		Partial:         res.Partial,
		UncoveredDemand: round(res.UncoveredDemand, 4),
		FleetUsed:       sol.FleetUsed,
		Warnings:        res.Diagnostics,
	}
	for i, rt := range sol.Routes {
		rr := ReportRoute{
			RouteID:       fmt.Sprintf("R%02d", i+1),
			RouteNumber:   i + 1,
			StopsCount:    len(rt.Stops),
			CycleMinutes:  round(rt.CycleMinutes, 2),
			Efficiency:    round(rt.Efficiency, 4),
			DemandCovered: round(rt.Demand, 4),
			Buses:         rt.Buses,
			Stops:         make([]ReportStop, 0, len(rt.Stops)),
		}
		for _, lg := range rt.Legs {
			if lg.Transfers > rr.MaxTransfers {
				rr.MaxTransfers = lg.Transfers
			}
		}
		for j, si := range rt.Stops {
			st := res.Stops[si]
			rr.Stops = append(rr.Stops, ReportStop{StopOrder: j + 1, StopName: st.Name, Latitude: st.Lat, Longitude: st.Lng})
		}
		out.Routes = append(out.Routes, rr)
	}
	return Report{Success: true, Results: out}
}

// FailureReport renders err with its kind.
func FailureReport(err error) Report {
	kind := KindOf(err)
	if kind == "" {
		kind = KindAlgorithm
	}
	return Report{Success: false, Error: err.Error(), ErrorKind: kind}
}

func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}
