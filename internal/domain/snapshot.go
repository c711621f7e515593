package domain

import "time"

// Message types on the subscriber channel.
const (
	MessageTelemetry = "telemetry"
	MessageAlert     = "alert"
)

// City describes the monitored site.
type City struct {
	Name       string  `json:"name" yaml:"name"`
	State      string  `json:"state" yaml:"state"`
	Lat        float64 `json:"lat" yaml:"lat"`
	Lon        float64 `json:"lon" yaml:"lon"`
	Timezone   string  `json:"timezone" yaml:"timezone"`
	BeachSlope float64 `json:"beach_slope" yaml:"beach_slope"`
}

// Physics is the closed-form run-up result for the tick.
type Physics struct {
	RunupM      float64   `json:"runup_m"`
	OverallRisk RiskLevel `json:"overall_risk"`
	MaxRunupM   float64   `json:"max_runup_m"`
}

// KeyMetrics are the headline figures shown on the dashboard.
type KeyMetrics struct {
	MaxWaveRunup       float64 `json:"max_wave_runup"`
	AffectedPopulation int     `json:"affected_population"`
	SafeRoutes         string  `json:"safe_routes"`
	CoastalTempC       float64 `json:"coastal_temp_c"`
	EstWaterLevelM     float64 `json:"est_water_level_m"`
	RateOfRise         string  `json:"rate_of_rise"`
	RiskVelocity       float64 `json:"risk_velocity"`
	PeakPrediction     string  `json:"peak_prediction"`
	FloodWaterRise12h  float64 `json:"flood_water_rise_12h"`
}

// SystemInfo describes the engines behind the snapshot.
type SystemInfo struct {
	InferenceDevice string  `json:"inference_device"`
	ModelLoaded     bool    `json:"model_loaded"`
	UpdateHz        float64 `json:"update_hz"`
	PhysicsEngine   string  `json:"physics_engine"`
	LearnedEngine   string  `json:"lstm_engine"`
	PredictionMode  string  `json:"prediction_mode"`
	OceanMode       string  `json:"ocean_mode"`
}

// RecordingStats summarises the audit recorder.
type RecordingStats struct {
	SessionStart string `json:"session_start"`
	TotalRecords int64  `json:"total_records"`
	Files        int    `json:"recording_files"`
	CurrentDate  string `json:"current_date"`
	BaseDir      string `json:"base_dir"`
}

// Snapshot is the immutable world state produced by one tick. Every field is
// derived from the same OceanState.
type Snapshot struct {
	Type           string            `json:"type"`
	Tick           uint64            `json:"tick"`
	Timestamp      float64           `json:"timestamp"`
	City           City              `json:"city"`
	Ocean          OceanState        `json:"ocean"`
	Physics        Physics           `json:"physics"`
	Hybrid         *HybridPrediction `json:"hybrid_prediction"`
	PredictionMode string            `json:"prediction_mode"`
	RiskZone       RiskZone          `json:"risk_zone"`
	Window         ActionWindow      `json:"window_for_action"`
	KeyMetrics     KeyMetrics        `json:"key_metrics"`
	Sectors        []SectorRisk      `json:"sectors"`
	Roads          []RoadStatus      `json:"roads"`
	Forecast       []ForecastPoint   `json:"forecast"`
	Alerts         []Alert           `json:"alerts"`
	Assets
	Recording      *RecordingStats   `json:"recording,omitempty"`
	System         SystemInfo        `json:"system"`
}

// AlertMessage is pushed immediately when an operator acts.
type AlertMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// NewAlertMessage builds the outbound notice for op.
func NewAlertMessage(op OperatorAction) AlertMessage {
	return AlertMessage{Type: MessageAlert, Action: op.Notice}
}

// AuditRecord is the per-tick row handed to audit sinks.
type AuditRecord struct {
	Timestamp       time.Time          `json:"timestamp"`
	Tick            uint64             `json:"tick"`
	StationID       string             `json:"station_id"`
	Ocean           OceanState         `json:"ocean"`
	PhysicsRunupM   float64            `json:"physics_runup_m"`
	PhysicsRisk     RiskLevel          `json:"physics_risk"`
	Learned         *LearnedPrediction `json:"learned,omitempty"`
	HybridRunupM    *float64           `json:"hybrid_runup_m,omitempty"`
	HybridRisk      RiskLevel          `json:"hybrid_risk,omitempty"`
	InferenceDevice string             `json:"inference_device"`
	ModelLoaded     bool               `json:"model_loaded"`
	PredictionMode  string             `json:"prediction_mode"`
	IsCyclone       bool               `json:"is_cyclone"`
	EventType       string             `json:"event_type"`
}

// NewAuditRecord flattens a snapshot into an audit row.
func NewAuditRecord(s *Snapshot, stationID string) AuditRecord {
	rec := AuditRecord{
		Timestamp:       s.Ocean.Timestamp,
		Tick:            s.Tick,
		StationID:       stationID,
		Ocean:           s.Ocean,
		PhysicsRunupM:   s.Physics.RunupM,
		PhysicsRisk:     s.Physics.OverallRisk,
		InferenceDevice: s.System.InferenceDevice,
		ModelLoaded:     s.System.ModelLoaded,
		PredictionMode:  s.PredictionMode,
		IsCyclone:       s.Ocean.IsCyclone(),
		EventType:       "tick",
	}
	if s.Hybrid != nil {
		learned := s.Hybrid.Learned
		runup := s.Hybrid.BlendedRunup
		rec.Learned = &learned
		rec.HybridRunupM = &runup
		rec.HybridRisk = s.Hybrid.BlendedRisk
	}
	return rec
}
