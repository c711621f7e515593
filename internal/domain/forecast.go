package domain

import (
	"fmt"
	"math"
)

// Rand is the random source used by stochastic components. *math/rand/v2.Rand
// satisfies it; tests substitute deterministic sources.
type Rand interface {
	Float64() float64
	NormFloat64() float64
}

// Uniform draws from [lo, hi).
func Uniform(r Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// ForecastPoint is one step of the short-range physics track.
type ForecastPoint struct {
	OffsetMinutes int     `json:"time_offset_min"`
	Label         string  `json:"label"`
	WaveHeightM   float64 `json:"wave_height"`
	RunupM        float64 `json:"runup_m"`
}

// Forecast track parameters.
const (
	ForecastStepMinutes = 10
	ForecastHours       = 4
)

// ProjectForecast builds the short-range run-up track from the current wave
// height and period, one point every ten minutes over the given hours.
func ProjectForecast(r Rand, h0, t, beta float64, hours int) []ForecastPoint {
	steps := hours * 60 / ForecastStepMinutes
	out := make([]ForecastPoint, 0, steps)
	for m := 0; m < hours*60; m += ForecastStepMinutes {
		minute := float64(m)
		storm := 1.0 + 0.25*math.Sin(minute*0.015) + 0.08*(minute/240)
		h := max(0.3, h0*storm+Uniform(r, -0.15, 0.15))
		p := max(4, t+math.Sin(minute*0.01)*1.2)
		out = append(out, ForecastPoint{
			OffsetMinutes: m,
			Label:         fmt.Sprintf("+%dm", m),
			WaveHeightM:   Round(h, 2),
			RunupM:        Round(StockdonRunup(h, p, beta), 3),
		})
	}
	return out
}

// PeakRunup returns the maximum run-up along a track.
func PeakRunup(track []ForecastPoint) float64 {
	peak := 0.0
	for _, p := range track {
		peak = max(peak, p.RunupM)
	}
	return peak
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
