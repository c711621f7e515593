package ocean

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// DefaultStations are the buoy network IDs. The first is reported.
var DefaultStations = []string{
	"BUOY-MUM-01", "BUOY-MUM-02", "BUOY-MUM-03", "BUOY-GOA-01", "BUOY-RNG-01",
	"BUOY-ALB-01", "BUOY-THN-01", "BUOY-GUJ-01", "BUOY-KOC-01", "BUOY-DVK-01",
}

// Reversion rate and step size of the Ornstein-Uhlenbeck walk.
const (
	DefaultTheta = 0.15
	stepDT       = 1.0
)

// StochasticConfig tunes the mean-reverting process.
type StochasticConfig struct {
	Stations    []string
	Primary     int     // index of the reported station
	CycloneRate float64 // per-tick spawn probability
	MinDuration uint64  // ticks
	MaxDuration uint64  // ticks
	Theta       float64
	Logger      *slog.Logger
}

func (c StochasticConfig) withDefaults() StochasticConfig {
	if len(c.Stations) == 0 {
		c.Stations = DefaultStations
	}
	if c.Primary < 0 || c.Primary >= len(c.Stations) {
		c.Primary = 0
	}
	if c.MinDuration == 0 {
		c.MinDuration = 48
	}
	if c.MaxDuration < c.MinDuration {
		c.MaxDuration = max(c.MinDuration, 120)
	}
	if c.Theta <= 0 {
		c.Theta = DefaultTheta
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type stationState struct {
	wave, wind, pressure, temp, period float64
}

// Stochastic walks every station toward its seasonal baseline and overrides
// the target with cyclone extremes while an event is active.
type Stochastic struct {
	cfg     StochasticConfig
	rng     Rand
	tick    uint64
	states  []stationState
	events  []CycloneEvent
	spawned int
}

// NewStochastic seeds every station near typical fair-weather values.
func NewStochastic(r Rand, cfg StochasticConfig) *Stochastic {
	cfg = cfg.withDefaults()
	s := &Stochastic{cfg: cfg, rng: r, states: make([]stationState, len(cfg.Stations))}
	for i := range s.states {
		s.states[i] = stationState{
			wave:     1.2 + domain.Uniform(r, -0.3, 0.3),
			wind:     5.0 + domain.Uniform(r, -1, 1),
			pressure: 1010 + domain.Uniform(r, -3, 3),
			temp:     27.0 + domain.Uniform(r, -1, 1),
			period:   8.0 + domain.Uniform(r, -1, 1),
		}
	}
	return s
}

func (s *Stochastic) Mode() Mode { return ModeStochastic }

// Tick is the number of steps taken so far.
func (s *Stochastic) Tick() uint64 { return s.tick }

// ActiveEvents returns the events that have not yet ended.
func (s *Stochastic) ActiveEvents() []CycloneEvent {
	out := make([]CycloneEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Spawn injects a cyclone event.
func (s *Stochastic) Spawn(ev CycloneEvent) {
	s.spawned++
	if ev.Name == "" {
		ev.Name = fmt.Sprintf("TC-%02d", s.spawned)
	}
	s.events = append(s.events, ev)
	s.cfg.Logger.Info("cyclone spawned",
		"name", ev.Name,
		"category", ev.Category.Code,
		"start_tick", ev.StartTick,
		"duration", ev.Duration,
		"stations", len(ev.Stations),
	)
}

// Step advances every station once and returns the primary station's state.
func (s *Stochastic) Step(now time.Time) domain.OceanState {
	s.tick++
	if s.cfg.CycloneRate > 0 && s.rng.Float64() < s.cfg.CycloneRate {
		s.Spawn(s.newEvent(now))
	}

	season := SeasonalBaseline(now.Month())
	diurnal := -1.5 * math.Cos(float64(now.Hour()-14)*math.Pi/12)

	var primary domain.OceanState
	for i := range s.states {
		st := s.advance(i, season, diurnal)
		if i == s.cfg.Primary {
			primary = st
		}
	}
	primary.Timestamp = now

	s.prune()
	return primary
}

func (s *Stochastic) advance(i int, season Baseline, diurnal float64) domain.OceanState {
	st := &s.states[i]
	intensity, ev := s.intensity(i)

	if intensity > domain.CycloneThreshold {
		cat := ev.Category
		st.wave = s.ou(st.wave, season.WaveBase+intensity*(cat.MaxWave-season.WaveBase), 0.4)
		st.wind = s.ou(st.wind, season.WindBase+intensity*(cat.MaxWindKmh/3.6-season.WindBase), 1.5)
		st.pressure = s.ou(st.pressure, season.PressureBase-intensity*(season.PressureBase-cat.MinPressure), 2.0)
		st.period = s.ou(st.period, season.PeriodBase+intensity*3.0, 0.3)
		st.temp = s.ou(st.temp, season.TempBase+diurnal-intensity*2, 0.3)
	} else {
		st.wave = s.ou(st.wave, season.WaveBase, season.WaveVar*0.15)
		st.wind = s.ou(st.wind, season.WindBase, season.WindVar*0.2)
		st.pressure = s.ou(st.pressure, season.PressureBase, season.PressureVar*0.3)
		st.period = s.ou(st.period, season.PeriodBase, season.PeriodVar*0.1)
		st.temp = s.ou(st.temp, season.TempBase+diurnal, 0.2)
	}

	out := domain.DefaultBounds.Clamp(domain.OceanState{
		WaveHeightM:  st.wave,
		WavePeriodS:  st.period,
		WindSpeedMPS: st.wind,
		PressureHPa:  st.pressure,
		TempC:        st.temp,
	})
	st.wave, st.period, st.wind, st.pressure, st.temp =
		out.WaveHeightM, out.WavePeriodS, out.WindSpeedMPS, out.PressureHPa, out.TempC
	out.Cyclone = intensity
	return out
}

// intensity is the strongest active event affecting station.
func (s *Stochastic) intensity(station int) (float64, CycloneEvent) {
	var (
		best float64
		ev   CycloneEvent
	)
	for _, e := range s.events {
		if !e.Affects(station) {
			continue
		}
		if v := e.Intensity(s.tick); v > best {
			best, ev = v, e
		}
	}
	return best, ev
}

// ou is one Ornstein-Uhlenbeck step toward target.
func (s *Stochastic) ou(current, target, volatility float64) float64 {
	drift := s.cfg.Theta * (target - current) * stepDT
	diffusion := volatility * math.Sqrt(stepDT) * s.rng.NormFloat64()
	return current + drift + diffusion
}

func (s *Stochastic) newEvent(now time.Time) CycloneEvent {
	span := s.cfg.MaxDuration - s.cfg.MinDuration
	duration := s.cfg.MinDuration + uint64(s.rng.IntN(int(span)+1))
	k := min(len(s.states), 2+s.rng.IntN(4))
	return CycloneEvent{
		Name:      fmt.Sprintf("TC-%d-%02d", now.Year(), s.spawned+1),
		StartTick: s.tick,
		Duration:  duration,
		Category:  Categories[s.rng.IntN(len(Categories))],
		Stations:  sample(s.rng, len(s.states), k),
	}
}

func (s *Stochastic) prune() {
	kept := s.events[:0]
	for _, e := range s.events {
		if !e.Ended(s.tick) {
			kept = append(kept, e)
		}
	}
	s.events = kept
}

// sample draws k distinct indices from [0,n) with a partial Fisher-Yates
// shuffle.
func sample(r Rand, n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k:k]
}
