package ocean

import "math"

// CycloneCategory is an IMD intensity class with its extreme values.
type CycloneCategory struct {
	Code        string
	MaxWindKmh  float64
	MinPressure float64
	MaxWave     float64
}

// Categories is the cyclone catalogue events are drawn from.
var Categories = []CycloneCategory{
	{Code: "VSCS", MaxWindKmh: 140, MinPressure: 976, MaxWave: 6.5},
	{Code: "ESCS", MaxWindKmh: 195, MinPressure: 950, MaxWave: 8.0},
	{Code: "SCS", MaxWindKmh: 100, MinPressure: 988, MaxWave: 5.0},
	{Code: "SuCS", MaxWindKmh: 240, MinPressure: 920, MaxWave: 9.0},
	{Code: "CS", MaxWindKmh: 85, MinPressure: 992, MaxWave: 4.0},
}

// CycloneEvent is a storm active over a window of ticks for a set of
// stations. It is read-only once created.
type CycloneEvent struct {
	Name      string
	StartTick uint64
	Duration  uint64
	Category  CycloneCategory
	Stations  []int
}

// PeakTick is the midpoint of the event.
func (e CycloneEvent) PeakTick() uint64 {
	return e.StartTick + e.Duration/2
}

// Ended reports whether tick is past the event window.
func (e CycloneEvent) Ended(tick uint64) bool {
	return tick > e.StartTick+e.Duration
}

// Affects reports whether station is in the event's path.
func (e CycloneEvent) Affects(station int) bool {
	for _, s := range e.Stations {
		if s == station {
			return true
		}
	}
	return false
}

// Intensity returns the event strength in [0,1] at tick. It rises over the
// first 40% of the window (power 1.5), peaks at 1 and decays over the
// remaining 60% (power 1.2).
func (e CycloneEvent) Intensity(tick uint64) float64 {
	if e.Duration == 0 || tick < e.StartTick || e.Ended(tick) {
		return 0
	}
	pos := float64(tick-e.StartTick) / float64(e.Duration)
	if pos < 0.4 {
		return math.Pow(pos/0.4, 1.5)
	}
	return math.Pow((1-pos)/0.6, 1.2)
}
