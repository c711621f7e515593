package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/forecast"
	"github.com/couchcryptid/aegis-cortex/internal/ocean"
)

// Engine labels reported in system info.
const (
	physicsEngine = "Stockdon2006"
	learnedEngine = "AEGIS-LSTM-v1"
	mockEngine    = "Mock"
)

// peakWaveThreshold moves the predicted peak earlier for heavy seas.
const peakWaveThreshold = 2.5

// assemble derives every snapshot field from state.
func (o *Orchestrator) assemble(ctx context.Context, state domain.OceanState) *domain.Snapshot {
	beta := o.site.City.BeachSlope
	runup := domain.StockdonRunup(state.WaveHeightM, state.WavePeriodS, beta)
	minWall := domain.MinWallHeight(o.site.Sectors)
	overall := domain.ClassifyFlood(runup, minWall)

	hybrid, outcome := o.engine.Forecast(ctx, runup)
	o.metrics.Predictions.WithLabelValues(string(outcome.Source), string(outcome.Reason)).Inc()
	o.metrics.ForecastConfidence.Set(hybrid.Confidence)
	o.metrics.CurrentRunup.Set(runup)

	sectors := domain.ComputeSectorRisks(o.site.Sectors, runup)
	roads, safe := domain.ComputeRoadStatus(o.site.Roads, runup)
	track := domain.ProjectForecast(o.rand(), state.WaveHeightM, state.WavePeriodS, beta, domain.ForecastHours)

	for _, a := range o.alerts.ObserveSectors(sectors) {
		o.metrics.Alerts.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	}

	zone := domain.ComputeRiskZone(overall, runup, minWall)
	o.advanceAssets(zone.Zone)

	snap := &domain.Snapshot{
		Type:      domain.MessageTelemetry,
		Tick:      o.ticks,
		Timestamp: float64(state.Timestamp.UnixNano()) / 1e9,
		City:      o.site.City,
		Ocean:     roundOcean(state),
		Physics: domain.Physics{
			RunupM:      domain.Round(runup, 3),
			OverallRisk: overall,
			MaxRunupM:   domain.Round(domain.PeakRunup(track), 3),
		},
		Hybrid:         &hybrid,
		PredictionMode: o.cfg.PredictionMode,
		RiskZone:       zone,
		Window:         domain.ComputeActionWindow(runup, minWall),
		KeyMetrics:     o.keyMetrics(state, runup, sectors, safe, len(roads)),
		Sectors:        sectors,
		Roads:          roads,
		Forecast:       track,
		Alerts:         o.alerts.Recent(),
		Assets:         o.assets.Clone(),
		System:         systemInfo(o.engine, o.process.Mode(), o.cfg),
	}
	if o.cfg.Recording != nil {
		stats := o.cfg.Recording.Stats()
		snap.Recording = &stats
	}
	return snap
}

func (o *Orchestrator) keyMetrics(state domain.OceanState, runup float64, sectors []domain.SectorRisk, safe, roads int) domain.KeyMetrics {
	r := o.rand()
	peak := "06:00 AM"
	if state.WaveHeightM >= peakWaveThreshold {
		peak = "04:30 AM"
	}
	return domain.KeyMetrics{
		MaxWaveRunup:       domain.Round(runup, 2),
		AffectedPopulation: domain.TotalAffected(sectors),
		SafeRoutes:         fmt.Sprintf("%d/%d", safe, roads),
		CoastalTempC:       domain.Round(state.TempC, 1),
		EstWaterLevelM:     domain.Round(runup, 1),
		RateOfRise:         fmt.Sprintf("+%.1fcm/hr", domain.Uniform(r, 0.2, 0.8)),
		RiskVelocity:       domain.Round(domain.Uniform(r, 8, 18), 1),
		PeakPrediction:     peak,
		FloodWaterRise12h:  domain.Round(runup*0.6, 1),
	}
}

// advanceAssets moves the live feeds one tick. Shelters only take in
// evacuees outside the green zone.
func (o *Orchestrator) advanceAssets(zone string) {
	r := o.rand()
	domain.AdvanceShelters(r, o.assets.Shelters, zone)
	domain.AdvanceDrones(r, o.assets.Drones)
	domain.AdvanceShips(r, o.assets.Ships)
}

func (o *Orchestrator) rand() domain.Rand { return o.cfg.Rand }

// roundOcean rounds the state for display.
func roundOcean(s domain.OceanState) domain.OceanState {
	s.WaveHeightM = domain.Round(s.WaveHeightM, 2)
	s.WavePeriodS = domain.Round(s.WavePeriodS, 1)
	s.WindSpeedMPS = domain.Round(s.WindSpeedMPS, 2)
	s.PressureHPa = domain.Round(s.PressureHPa, 1)
	s.TempC = domain.Round(s.TempC, 1)
	s.Cyclone = domain.Round(s.Cyclone, 3)
	return s
}

func systemInfo(e *forecast.Engine, mode ocean.Mode, cfg Config) domain.SystemInfo {
	engine := mockEngine
	if e.ModelLoaded() {
		engine = learnedEngine
	}
	return domain.SystemInfo{
		InferenceDevice: e.Device(),
		ModelLoaded:     e.ModelLoaded(),
		UpdateHz:        domain.Round(1/cfg.Interval.Seconds(), 2),
		PhysicsEngine:   physicsEngine,
		LearnedEngine:   engine,
		PredictionMode:  cfg.PredictionMode,
		OceanMode:       string(mode),
	}
}
