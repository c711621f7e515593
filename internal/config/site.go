package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// Site is the monitored coastline: city, protected sectors, roads and the
// shelters, vessels and other assets plotted alongside them.
type Site struct {
	StationID     string                `yaml:"station_id"`
	City          domain.City           `yaml:"city"`
	Sectors       []domain.SectorConfig `yaml:"sectors"`
	Roads         []domain.RoadConfig   `yaml:"roads"`
	domain.Assets `yaml:",inline"`
}

// LoadSite reads and validates a YAML site file.
func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}

	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse site config %s: %w", path, err)
	}
	if site.StationID == "" {
		site.StationID = defaultStationID
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("site config %s: %w", path, err)
	}
	return &site, nil
}

// Validate checks the invariants the risk engines rely on.
func (s *Site) Validate() error {
	var errs []error
	if s.City.BeachSlope <= 0 {
		errs = append(errs, errors.New("city.beach_slope must be positive"))
	}
	if len(s.Sectors) == 0 {
		errs = append(errs, errors.New("at least one sector is required"))
	}
	for i, sec := range s.Sectors {
		if sec.Name == "" {
			errs = append(errs, fmt.Errorf("sectors[%d]: name is required", i))
		}
		if sec.WallHeightM <= 0 {
			errs = append(errs, fmt.Errorf("sectors[%d] %q: wall_height_m must be positive", i, sec.Name))
		}
		if sec.Population < 0 {
			errs = append(errs, fmt.Errorf("sectors[%d] %q: population must be >= 0", i, sec.Name))
		}
	}
	for i, r := range s.Roads {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("roads[%d]: name is required", i))
		}
	}
	for i, sh := range s.Shelters {
		if sh.Capacity < 0 || sh.CurrentOccupancy < 0 || sh.CurrentOccupancy > sh.Capacity {
			errs = append(errs, fmt.Errorf("shelters[%d] %q: occupancy must be within [0, capacity]", i, sh.Name))
		}
	}
	for i, d := range s.Drones {
		if d.Battery < 0 || d.Battery > 100 {
			errs = append(errs, fmt.Errorf("drones[%d] %q: battery must be within [0, 100]", i, d.Name))
		}
	}
	return errors.Join(errs...)
}

const defaultStationID = "BUOY-MUM-01"

// MumbaiSite is the built-in site used when SITE_CONFIG is unset.
func MumbaiSite() *Site {
	return &Site{
		StationID: defaultStationID,
		City: domain.City{
			Name:       "Mumbai",
			State:      "Maharashtra, India",
			Lat:        19.0760,
			Lon:        72.8777,
			Timezone:   "IST",
			BeachSlope: 0.035,
		},
		Sectors: []domain.SectorConfig{
			{Name: "Colaba", WallHeightM: 2.8, Population: 18000, Lat: 18.9067, Lon: 72.8147, StructuralIntegrity: 72, GridIntegrity: 78},
			{Name: "Worli Seaface", WallHeightM: 3.2, Population: 22000, Lat: 19.0176, Lon: 72.8150, StructuralIntegrity: 85, GridIntegrity: 88},
			{Name: "Dharavi", WallHeightM: 1.5, Population: 65000, Lat: 19.0438, Lon: 72.8534, StructuralIntegrity: 45, GridIntegrity: 52},
			{Name: "JNPT / Nhava Sheva", WallHeightM: 4.8, Population: 12000, Lat: 18.9500, Lon: 72.9500, StructuralIntegrity: 91, GridIntegrity: 93},
			{Name: "Juhu Beach", WallHeightM: 2.0, Population: 15000, Lat: 19.0988, Lon: 72.8267, StructuralIntegrity: 68, GridIntegrity: 74},
		},
		Roads: []domain.RoadConfig{
			{Name: "Marine Drive", ElevationM: 1.8},
			{Name: "Western Express Hwy", ElevationM: 4.5},
			{Name: "SV Road (Bandra)", ElevationM: 3.2},
			{Name: "LBS Marg (Kurla)", ElevationM: 2.5},
			{Name: "Harbour Link Road", ElevationM: 1.4},
			{Name: "Carter Road (Bandra)", ElevationM: 1.2},
		},
		Assets: domain.Assets{
			Shelters: []domain.Shelter{
				{ID: "sh-1", Name: "BMC Community Hall - Dadar", Lat: 19.0178, Lon: 72.8478, Capacity: 800, Status: domain.ShelterOpen, DistanceKm: 1.5, Supplies: []string{"Water", "Medical", "Wi-Fi", "Generator"}, SafeRoutesAvailable: true, Accessibility: "High Rating"},
				{ID: "sh-2", Name: "Mumbai University Campus", Lat: 18.9316, Lon: 72.8316, Capacity: 2500, Status: domain.ShelterOpen, DistanceKm: 3.2, Supplies: []string{"Water", "Medical", "Wi-Fi", "Food"}, SafeRoutesAvailable: true, Accessibility: "High Rating"},
				{ID: "sh-3", Name: "NSCI Dome - Worli", Lat: 19.0200, Lon: 72.8190, Capacity: 3000, CurrentOccupancy: 120, Status: domain.ShelterOpen, DistanceKm: 2.1, Supplies: []string{"Water", "Medical", "Generator"}, SafeRoutesAvailable: true, Accessibility: "High Rating"},
				{ID: "sh-4", Name: "KEM Hospital", Lat: 19.0000, Lon: 72.8400, Capacity: 1500, CurrentOccupancy: 450, Status: domain.ShelterOpen, DistanceKm: 2.8, Supplies: []string{"Water", "Medical", "Generator", "Food"}, SafeRoutesAvailable: true, Accessibility: "High Rating"},
				{ID: "sh-5", Name: "Andheri Sports Complex", Lat: 19.1197, Lon: 72.8464, Capacity: 1200, Status: domain.ShelterStandby, DistanceKm: 5.0, Supplies: []string{"Water", "Food"}, Accessibility: "Moderate"},
			},
			Infrastructure: []domain.Infrastructure{
				{Name: "Bandra-Worli Sea Link", Lat: 19.0380, Lon: 72.8160, Type: "bridge", Score: 94, Risk: "Critical Failure Risk"},
				{Name: "Tata Power Trombay", Lat: 19.0050, Lon: 72.9100, Type: "power", Score: 82, Risk: "Moderate Risk"},
				{Name: "NDRF Station Andheri", Lat: 19.1136, Lon: 72.8697, Type: "shelter", Score: 55, Risk: "Stable Structure"},
				{Name: "BPCL Mahul Refinery", Lat: 19.0200, Lon: 72.9200, Type: "industrial", Score: 88, Risk: "Low Risk"},
				{Name: "Mumbai Port Trust", Lat: 18.9350, Lon: 72.8450, Type: "port", Score: 70, Risk: "Moderate Risk"},
			},
			Ports: []domain.Port{
				{ID: "port-1", Name: "Nhava Sheva (JNPT)", Lat: 18.95, Lon: 72.95, Status: "Active", Capacity: 90},
				{ID: "port-2", Name: "Sassoon Docks", Lat: 18.91, Lon: 72.835, Status: "Congested", Capacity: 95},
				{ID: "port-3", Name: "Mumbai Port Trust Docks", Lat: 18.935, Lon: 72.845, Status: "Active", Capacity: 65},
			},
			PopulationHotspots: []domain.PopulationHotspot{
				{Label: "Dharavi", Lat: 19.0438, Lon: 72.8534, Density: "Very High", Count: 65000},
				{Label: "Kurla West", Lat: 19.0540, Lon: 72.8400, Density: "High", Count: 35000},
				{Label: "Worli Koliwada", Lat: 19.0176, Lon: 72.8150, Density: "High", Count: 22000},
				{Label: "Juhu / Versova", Lat: 19.0988, Lon: 72.8267, Density: "Medium", Count: 15000},
			},
			Drones: []domain.Drone{
				{ID: "alpha", Name: "Alpha", Status: domain.DroneActive, Battery: 78, AltitudeM: 120, SpeedMS: 4.5, Lat: 19.0438, Lon: 72.8534, SignalDBm: -42, DataRate: "12kb/s"},
				{ID: "bravo", Name: "Bravo", Status: domain.DroneActive, Battery: 65, AltitudeM: 85, SpeedMS: 3.2, Lat: 19.0176, Lon: 72.8150, SignalDBm: -55, DataRate: "8kb/s"},
				{ID: "charlie", Name: "Charlie", Status: "STANDBY", Battery: 92, Lat: 18.9316, Lon: 72.8316, SignalDBm: -30, DataRate: "0kb/s"},
				{ID: "delta", Name: "Delta", Status: "RETURNING", Battery: 23, AltitudeM: 45, SpeedMS: 6.1, Lat: 19.0988, Lon: 72.8267, SignalDBm: -68, DataRate: "4kb/s"},
			},
			Ships: []domain.Ship{
				{ID: "mv-101", Name: "MV Mumbai Maersk", Type: "cargo", Status: "In Transit", SpeedKnots: 12.5, Lat: 18.8800, Lon: 72.9200, HeadingDeg: 310},
				{ID: "mv-102", Name: "INS Teg", Type: "military", Status: "Patrol", SpeedKnots: 18.0, Lat: 18.9200, Lon: 72.7500, HeadingDeg: 290},
				{ID: "fv-201", Name: "Macchimar 7", Type: "fishing", Status: "Fishing", SpeedKnots: 3.2, Lat: 19.0900, Lon: 72.8100, HeadingDeg: 120},
				{ID: "fv-202", Name: "Versova Star", Type: "fishing", Status: "Fishing", SpeedKnots: 2.8, Lat: 19.1300, Lon: 72.8000, HeadingDeg: 140},
				{ID: "tnk-301", Name: "Reliance Tanker", Type: "tanker", Status: "Anchored", Lat: 18.9500, Lon: 72.9600},
			},
		},
	}
}
