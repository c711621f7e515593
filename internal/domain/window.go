package domain

import "math"

// AssumedRiseRate is the linear water rise used for the action window, m/hour.
const AssumedRiseRate = 0.1

const maxDisplayHours = 99

// maxWindowSeconds bounds the countdown for sites with no walls or margins
// too large to represent.
const maxWindowSeconds = math.MaxInt32

// ActionWindow is the countdown until the lowest wall is overtopped.
type ActionWindow struct {
	Hours        int  `json:"hours"`
	Minutes      int  `json:"mins"`
	Seconds      int  `json:"secs"`
	TotalSeconds int  `json:"total_secs"`
	Urgent       bool `json:"urgent"`
}

// ComputeActionWindow converts the margin between the lowest wall and the
// current run-up into a countdown. Displayed hours are capped at 99 and an
// infinite margin yields the longest, non-urgent window.
func ComputeActionWindow(runup, minWall float64) ActionWindow {
	margin := minWall - runup
	if margin <= 0 {
		return ActionWindow{Urgent: true}
	}

	total := maxWindowSeconds
	if secs := margin / AssumedRiseRate * 3600; secs < maxWindowSeconds {
		total = int(secs)
	}
	return ActionWindow{
		Hours:        min(total/3600, maxDisplayHours),
		Minutes:      (total % 3600) / 60,
		Seconds:      total % 60,
		TotalSeconds: total,
		Urgent:       total < 3600,
	}
}

// Public risk zones.
const (
	ZoneRed    = "RED ZONE"
	ZoneYellow = "YELLOW ZONE"
	ZoneGreen  = "GREEN ZONE"
)

// RiskZone is the public-facing evacuation guidance.
type RiskZone struct {
	Zone     string `json:"zone"`
	Color    string `json:"color"`
	Message  string `json:"message"`
	EvacMins int    `json:"evac_mins"`
}

// ComputeRiskZone derives evacuation guidance from overall risk and margin.
func ComputeRiskZone(overall RiskLevel, runup, minWall float64) RiskZone {
	margin := minWall - runup
	switch {
	case overall == RiskCritical:
		return RiskZone{
			Zone:     ZoneRed,
			Color:    "red",
			Message:  "Immediate flooding detected. Evacuate now.",
			EvacMins: max(5, int(margin*-30)),
		}
	case margin < 0.5:
		return RiskZone{
			Zone:     ZoneYellow,
			Color:    "yellow",
			Message:  "Increasing water levels detected. Prepare to evacuate.",
			EvacMins: max(15, int(margin*60)),
		}
	default:
		return RiskZone{
			Zone:    ZoneGreen,
			Color:   "green",
			Message: "Water levels stable. Normal operations.",
		}
	}
}
