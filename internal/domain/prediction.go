package domain

// PredictionSource identifies which path produced a forecast.
type PredictionSource string

const (
	SourceLearned         PredictionSource = "LEARNED"
	SourcePhysicsFallback PredictionSource = "PHYSICS_FALLBACK"
)

// FallbackReason explains why the learned path was not used.
type FallbackReason string

const (
	FallbackNone          FallbackReason = ""
	FallbackNoModel       FallbackReason = "no_model"
	FallbackWindowFilling FallbackReason = "window_filling"
	FallbackTimeout       FallbackReason = "timeout"
	FallbackError         FallbackReason = "error"
	FallbackInvalidOutput FallbackReason = "invalid_output"
)

// LearnedPrediction is the per-horizon run-up forecast from the learned model
// or its physics stand-in. Horizons are hourly.
type LearnedPrediction struct {
	Runup1h        float64          `json:"runup_1h"`
	Runup3h        float64          `json:"runup_3h"`
	Runup6h        float64          `json:"runup_6h"`
	Forecast       []float64        `json:"raw_forecast"`
	Confidence     float64          `json:"confidence"`
	Source         PredictionSource `json:"source"`
	FallbackReason FallbackReason   `json:"fallback_reason,omitempty"`
}

// HybridPrediction blends the learned (or fallback) forecast with a physics
// projection of the current run-up.
type HybridPrediction struct {
	Blended      []float64         `json:"hybrid_forecast"`
	BlendedRunup float64           `json:"hybrid_runup"`
	BlendedRisk  RiskLevel         `json:"hybrid_risk"`
	Confidence   float64           `json:"confidence"`
	Source       PredictionSource  `json:"source"`
	Learned      LearnedPrediction `json:"learned"`
	PhysicsRunup float64           `json:"physics_runup"`
	Alpha        float64           `json:"alpha"`
}
