package domain

import "math"

// Gravity is standard gravitational acceleration in m/s².
const Gravity = 9.81

// RiskLevel is the coarse flood classification used for global and
// forecast risk.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "SAFE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// DeepWaterWavelength returns L0 = g·T²/(2π) for period t in seconds.
func DeepWaterWavelength(t float64) float64 {
	return Gravity * t * t / (2 * math.Pi)
}

// StockdonRunup returns the 2% exceedance run-up in metres for deep-water
// wave height h0, period t and beach slope beta. Degenerate input
// (h0 <= 0 or L0 <= 0) returns 0.
func StockdonRunup(h0, t, beta float64) float64 {
	l0 := DeepWaterWavelength(t)
	if h0 <= 0 || l0 <= 0 || math.IsNaN(h0) || math.IsNaN(l0) {
		return 0
	}

	hl := h0 * l0
	setup := 0.35 * beta * math.Sqrt(hl)
	swash := math.Sqrt(hl * (0.563*beta*beta + 0.004))

	r2 := 1.1 * (setup + swash/2)
	if math.IsNaN(r2) {
		return 0
	}
	return max(0, r2)
}

// ClassifyFlood compares run-up against a height threshold.
func ClassifyFlood(runup, threshold float64) RiskLevel {
	margin := threshold - runup
	switch {
	case margin < 0:
		return RiskCritical
	case margin < 1.0:
		return RiskHigh
	default:
		return RiskSafe
	}
}

// ClassifyForecast maps a peak forecast run-up onto fixed forecast thresholds:
// above 2.5 m is CRITICAL, above 1.5 m is HIGH.
func ClassifyForecast(peak float64) RiskLevel {
	switch {
	case peak > 2.5:
		return RiskCritical
	case peak > 1.5:
		return RiskHigh
	default:
		return RiskSafe
	}
}
