package domain

import "math"

// Shelter and drone states.
const (
	ShelterOpen    = "OPEN"
	ShelterStandby = "STANDBY"
	DroneActive    = "ACTIVE"
)

// shelterFillLimit stops intake once a shelter is this full.
const shelterFillLimit = 0.9

// Shelter is an evacuation centre. Occupancy changes tick to tick.
type Shelter struct {
	ID                  string   `json:"id" yaml:"id"`
	Name                string   `json:"name" yaml:"name"`
	Lat                 float64  `json:"lat" yaml:"lat"`
	Lon                 float64  `json:"lon" yaml:"lon"`
	Capacity            int      `json:"capacity" yaml:"capacity"`
	CurrentOccupancy    int      `json:"current_occupancy" yaml:"current_occupancy"`
	Status              string   `json:"status" yaml:"status"`
	DistanceKm          float64  `json:"distance_km" yaml:"distance_km"`
	Supplies            []string `json:"supplies" yaml:"supplies"`
	SafeRoutesAvailable bool     `json:"safe_routes_available" yaml:"safe_routes_available"`
	Accessibility       string   `json:"accessibility" yaml:"accessibility"`
}

// Infrastructure is a critical structure with a static vulnerability score.
type Infrastructure struct {
	Name  string  `json:"name" yaml:"name"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Lon   float64 `json:"lon" yaml:"lon"`
	Type  string  `json:"type" yaml:"type"`
	Score int     `json:"score" yaml:"score"`
	Risk  string  `json:"risk" yaml:"risk"`
}

// Drone is a survey aircraft. Active drones wander and drain battery.
type Drone struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Status    string  `json:"status" yaml:"status"`
	Battery   float64 `json:"battery" yaml:"battery"`
	AltitudeM float64 `json:"altitude_m" yaml:"altitude_m"`
	SpeedMS   float64 `json:"speed_ms" yaml:"speed_ms"`
	Lat       float64 `json:"lat" yaml:"lat"`
	Lon       float64 `json:"lon" yaml:"lon"`
	SignalDBm int     `json:"signal_dbm" yaml:"signal_dbm"`
	DataRate  string  `json:"data_rate" yaml:"data_rate"`
}

// Ship is a tracked vessel. Moving ships drift along their heading.
type Ship struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type" yaml:"type"`
	Status     string  `json:"status" yaml:"status"`
	SpeedKnots float64 `json:"speed_knots" yaml:"speed_knots"`
	Lat        float64 `json:"lat" yaml:"lat"`
	Lon        float64 `json:"lon" yaml:"lon"`
	HeadingDeg float64 `json:"heading" yaml:"heading"`
}

// Port is a harbour with a static load figure.
type Port struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Lat      float64 `json:"lat" yaml:"lat"`
	Lon      float64 `json:"lon" yaml:"lon"`
	Status   string  `json:"status" yaml:"status"`
	Capacity int     `json:"capacity" yaml:"capacity"`
}

// PopulationHotspot marks a dense neighbourhood on the map.
type PopulationHotspot struct {
	Label   string  `json:"label" yaml:"label"`
	Lat     float64 `json:"lat" yaml:"lat"`
	Lon     float64 `json:"lon" yaml:"lon"`
	Density string  `json:"density" yaml:"density"`
	Count   int     `json:"count" yaml:"count"`
}

// Assets is everything on the map besides sectors and roads.
type Assets struct {
	Shelters           []Shelter           `json:"shelters" yaml:"shelters,omitempty"`
	Infrastructure     []Infrastructure    `json:"infrastructure" yaml:"infrastructure,omitempty"`
	Ports              []Port              `json:"ports" yaml:"ports,omitempty"`
	PopulationHotspots []PopulationHotspot `json:"population_hotspots" yaml:"population_hotspots,omitempty"`
	Drones             []Drone             `json:"drones" yaml:"drones,omitempty"`
	Ships              []Ship              `json:"ships" yaml:"ships,omitempty"`
}

// Clone returns a deep copy so the caller can mutate the live feeds without
// touching the original.
func (a Assets) Clone() Assets {
	out := Assets{
		Shelters:           append([]Shelter(nil), a.Shelters...),
		Infrastructure:     append([]Infrastructure(nil), a.Infrastructure...),
		Ports:              append([]Port(nil), a.Ports...),
		PopulationHotspots: append([]PopulationHotspot(nil), a.PopulationHotspots...),
		Drones:             append([]Drone(nil), a.Drones...),
		Ships:              append([]Ship(nil), a.Ships...),
	}
	for i := range out.Shelters {
		out.Shelters[i].Supplies = append([]string(nil), out.Shelters[i].Supplies...)
	}
	return out
}

// AdvanceShelters admits evacuees into open shelters while the risk zone is
// anything but green. Intake stops at 90% and never exceeds capacity.
func AdvanceShelters(r Rand, shelters []Shelter, zone string) {
	if zone == ZoneGreen {
		return
	}
	for i := range shelters {
		s := &shelters[i]
		if s.Status != ShelterOpen || s.Capacity <= 0 {
			continue
		}
		if float64(s.CurrentOccupancy)/float64(s.Capacity) >= shelterFillLimit {
			continue
		}
		s.CurrentOccupancy = min(s.Capacity, s.CurrentOccupancy+int(r.Float64()*4))
	}
}

// AdvanceDrones moves active drones a small random step and drains their
// battery. Battery never drops below 10%.
func AdvanceDrones(r Rand, drones []Drone) {
	for i := range drones {
		d := &drones[i]
		if d.Status != DroneActive {
			continue
		}
		d.Lat = Round(d.Lat+Uniform(r, -0.0005, 0.0005), 6)
		d.Lon = Round(d.Lon+Uniform(r, -0.0005, 0.0005), 6)
		d.Battery = Round(max(10, d.Battery-Uniform(r, 0, 0.05)), 2)
		d.AltitudeM = Round(d.AltitudeM+Uniform(r, -2, 2), 1)
		d.SpeedMS = Round(max(0, d.SpeedMS+Uniform(r, -0.3, 0.3)), 1)
	}
}

// AdvanceShips drifts moving ships in proportion to their speed and wobbles
// their heading. Stationary ships stay put.
func AdvanceShips(r Rand, ships []Ship) {
	for i := range ships {
		s := &ships[i]
		if s.SpeedKnots <= 0 {
			continue
		}
		scale := s.SpeedKnots / 20
		s.Lat = Round(s.Lat+Uniform(r, -0.0002, 0.0002)*scale, 6)
		s.Lon = Round(s.Lon+Uniform(r, -0.0002, 0.0002)*scale, 6)
		s.HeadingDeg = Round(math.Mod(s.HeadingDeg+Uniform(r, -2, 2)+360, 360), 1)
	}
}
