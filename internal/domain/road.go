package domain

import "math"

// RoadCondition is the flooding tier of a road.
type RoadCondition string

const (
	RoadDry     RoadCondition = "DRY"
	RoadWet     RoadCondition = "WET"
	RoadShallow RoadCondition = "SHALLOW"
	RoadFlooded RoadCondition = "FLOODED"
)

// Depth thresholds in metres.
const (
	wetDepthLimit     = 0.15
	shallowDepthLimit = 0.30
)

// RoadConfig is a monitored road segment.
type RoadConfig struct {
	Name       string  `json:"name" yaml:"name"`
	ElevationM float64 `json:"elevation_m" yaml:"elevation_m"`
}

// RoadStatus is the per-tick flooding state of one road.
type RoadStatus struct {
	Name     string        `json:"name"`
	DepthCM  float64       `json:"depth_cm"`
	Status   RoadCondition `json:"status"`
	Color    string        `json:"color"`
	Passable bool          `json:"passable"`
}

// AssessRoad classifies one road against the current run-up.
func AssessRoad(cfg RoadConfig, runup float64) RoadStatus {
	depth := max(0, runup-cfg.ElevationM)
	rs := RoadStatus{Name: cfg.Name, DepthCM: math.Round(depth*1000) / 10}

	switch {
	case depth <= 0:
		rs.DepthCM = 0
		rs.Status, rs.Color, rs.Passable = RoadDry, "green", true
	case depth < wetDepthLimit:
		rs.Status, rs.Color, rs.Passable = RoadWet, "yellow", true
	case depth < shallowDepthLimit:
		rs.Status, rs.Color, rs.Passable = RoadShallow, "orange", false
	default:
		rs.Status, rs.Color, rs.Passable = RoadFlooded, "red", false
	}
	return rs
}

// ComputeRoadStatus assesses every road and counts safe routes (DRY or WET).
func ComputeRoadStatus(roads []RoadConfig, runup float64) ([]RoadStatus, int) {
	out := make([]RoadStatus, len(roads))
	safe := 0
	for i, r := range roads {
		out[i] = AssessRoad(r, runup)
		if out[i].Passable {
			safe++
		}
	}
	return out, safe
}
