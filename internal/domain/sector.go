package domain

import (
	"fmt"
	"math"
)

// SectorStatus is the four-tier sector classification.
type SectorStatus string

const (
	SectorLow      SectorStatus = "LOW"
	SectorModerate SectorStatus = "MODERATE"
	SectorHigh     SectorStatus = "HIGH"
	SectorCritical SectorStatus = "CRITICAL"
)

// SectorConfig is a protected coastal sector. Loaded once at startup.
type SectorConfig struct {
	Name                string  `json:"name" yaml:"name"`
	WallHeightM         float64 `json:"wall_height" yaml:"wall_height_m"`
	Population          int     `json:"population" yaml:"population"`
	Lat                 float64 `json:"lat" yaml:"lat"`
	Lon                 float64 `json:"lon" yaml:"lon"`
	StructuralIntegrity int     `json:"structural_integrity" yaml:"structural_integrity"`
	GridIntegrity       int     `json:"grid_integrity" yaml:"grid_integrity"`
}

// SectorRisk is the per-tick risk of one sector.
type SectorRisk struct {
	SectorConfig
	Score              int          `json:"score"`
	Status             SectorStatus `json:"status"`
	AffectedPopulation int          `json:"affected_population"`
	RateOfRise         string       `json:"rate_of_rise"`
}

// AssessSector scores one sector against the current run-up.
func AssessSector(cfg SectorConfig, runup float64) SectorRisk {
	margin := cfg.WallHeightM - runup

	var (
		score  int
		status SectorStatus
		rate   string
	)
	switch {
	case margin < 0:
		score = min(100, int(88+math.Abs(margin)*12))
		status = SectorCritical
		rate = fmt.Sprintf("+%.1fcm/hr", math.Abs(margin)*8)
	case margin < 0.5:
		score = int(68 + (0.5-margin)*40)
		status = SectorHigh
		rate = fmt.Sprintf("+%.1fcm/hr", (0.5-margin)*6)
	case margin < 1.5:
		score = int(30 + (1.5-margin)*25)
		status = SectorModerate
		rate = fmt.Sprintf("+%.1fcm/hr", (1.5-margin)*3)
	default:
		score = max(5, int(28-margin*5))
		status = SectorLow
		rate = "Stable"
	}

	return SectorRisk{
		SectorConfig:       cfg,
		Score:              min(100, max(0, score)),
		Status:             status,
		AffectedPopulation: affectedPopulation(cfg, runup),
		RateOfRise:         rate,
	}
}

// affectedPopulation scales population quadratically with run-up relative to
// wall height, capped at the full population.
func affectedPopulation(cfg SectorConfig, runup float64) int {
	if cfg.Population <= 0 || runup <= 0 {
		return 0
	}
	if cfg.WallHeightM <= 0 {
		return cfg.Population
	}
	ratio := runup / cfg.WallHeightM
	frac := clamp(ratio*ratio, 0, 1)
	return min(cfg.Population, int(float64(cfg.Population)*frac))
}

// ComputeSectorRisks assesses every sector in configuration order.
func ComputeSectorRisks(sectors []SectorConfig, runup float64) []SectorRisk {
	out := make([]SectorRisk, len(sectors))
	for i, s := range sectors {
		out[i] = AssessSector(s, runup)
	}
	return out
}

// TotalAffected sums affected population over all sectors.
func TotalAffected(risks []SectorRisk) int {
	total := 0
	for _, r := range risks {
		total += r.AffectedPopulation
	}
	return total
}

// MinWallHeight returns the lowest wall across sectors, or +Inf when empty.
func MinWallHeight(sectors []SectorConfig) float64 {
	lowest := math.Inf(1)
	for _, s := range sectors {
		lowest = min(lowest, s.WallHeightM)
	}
	return lowest
}
