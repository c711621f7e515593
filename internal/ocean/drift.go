package ocean

import (
	"math"
	"time"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// Drift is the low-latency live generator: slow sinusoids over elapsed time
// plus uniform jitter. It keeps no state beyond its start time.
type Drift struct {
	rng   Rand
	start time.Time
}

// NewDrift returns a drift process whose phase starts at start.
func NewDrift(r Rand, start time.Time) *Drift {
	return &Drift{rng: r, start: start}
}

func (d *Drift) Mode() Mode { return ModeDrift }

// Step returns the state at now.
func (d *Drift) Step(now time.Time) domain.OceanState {
	e := now.Sub(d.start).Seconds()

	s := domain.OceanState{
		WaveHeightM:  max(0.5, 2.0+1.2*math.Sin(e*0.025)+domain.Uniform(d.rng, -0.1, 0.1)),
		WavePeriodS:  max(5, 9.0+2.0*math.Cos(e*0.018)),
		WindSpeedMPS: max(1, 6.0+3.0*math.Sin(e*0.03)+domain.Uniform(d.rng, -0.5, 0.5)),
		PressureHPa:  max(970, 1008-8*math.Sin(e*0.02)+domain.Uniform(d.rng, -1, 1)),
		TempC:        CoastalTemp(d.rng, now.Hour()),
		Timestamp:    now,
	}
	return domain.DefaultBounds.Clamp(s)
}

// CoastalTemp is the diurnal surface temperature, peaking mid-afternoon.
func CoastalTemp(r domain.Rand, hour int) float64 {
	v := 28.0 - 2*math.Cos(float64(hour-14)*math.Pi/12) + domain.Uniform(r, -0.5, 0.5)
	return domain.Round(v, 1)
}
