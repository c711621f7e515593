package domain

import "time"

// OceanState is the environmental state at a single tick.
type OceanState struct {
	WaveHeightM  float64   `json:"wave_height_m"`
	WavePeriodS  float64   `json:"wave_period_s"`
	WindSpeedMPS float64   `json:"wind_speed_mps"`
	PressureHPa  float64   `json:"pressure_hpa"`
	TempC        float64   `json:"temp_c"`
	Timestamp    time.Time `json:"timestamp"`

	// Cyclone is the active cyclone intensity in [0,1]; zero outside events.
	Cyclone float64 `json:"cyclone_intensity,omitempty"`
}

// Features returns the state as a predictor feature vector in the order
// [wave height, period, temperature, wind speed, pressure].
func (s OceanState) Features() []float64 {
	return []float64{s.WaveHeightM, s.WavePeriodS, s.TempC, s.WindSpeedMPS, s.PressureHPa}
}

// IsCyclone reports whether a cyclone event is shaping this state.
func (s OceanState) IsCyclone() bool {
	return s.Cyclone > CycloneThreshold
}

// CycloneThreshold is the intensity above which a cyclone overrides the
// seasonal baseline.
const CycloneThreshold = 0.1

// Bounds holds the physically plausible range of every tracked variable.
type Bounds struct {
	MinWaveHeight float64
	MinPeriod     float64
	MaxPeriod     float64
	MinWind       float64
	MinPressure   float64
	MaxPressure   float64
	MinTemp       float64
	MaxTemp       float64
}

// DefaultBounds are the clamps applied after every process step.
var DefaultBounds = Bounds{
	MinWaveHeight: 0.1,
	MinPeriod:     4.0,
	MaxPeriod:     18.0,
	MinWind:       0.5,
	MinPressure:   900,
	MaxPressure:   1020,
	MinTemp:       20.0,
	MaxTemp:       35.0,
}

// Clamp restricts every variable of s to b.
func (b Bounds) Clamp(s OceanState) OceanState {
	s.WaveHeightM = max(b.MinWaveHeight, s.WaveHeightM)
	s.WavePeriodS = clamp(s.WavePeriodS, b.MinPeriod, b.MaxPeriod)
	s.WindSpeedMPS = max(b.MinWind, s.WindSpeedMPS)
	s.PressureHPa = clamp(s.PressureHPa, b.MinPressure, b.MaxPressure)
	s.TempC = clamp(s.TempC, b.MinTemp, b.MaxTemp)
	return s
}

func clamp(v, lo, hi float64) float64 {
	return min(hi, max(lo, v))
}
