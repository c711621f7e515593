package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aegis-cortex/internal/alertlog"
	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/forecast"
	"github.com/couchcryptid/aegis-cortex/internal/observability"
	"github.com/couchcryptid/aegis-cortex/internal/ocean"
	"github.com/couchcryptid/aegis-cortex/internal/pipeline"
)

// --- mocks ---

type mockHub struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func (m *mockHub) Broadcast(_ context.Context, kind string, msg []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.msgs == nil {
		m.msgs = map[string][][]byte{}
	}
	m.msgs[kind] = append(m.msgs[kind], msg)
	return 1
}

func (m *mockHub) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs[kind])
}

func (m *mockHub) last(kind string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.msgs[kind]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

type mockAudit struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (m *mockAudit) Submit(rec domain.AuditRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return true
}

type mockRecording struct{}

func (mockRecording) Stats() domain.RecordingStats {
	return domain.RecordingStats{TotalRecords: 42, Files: 1, BaseDir: "data/recordings"}
}

// fixedProcess returns the same sea state every tick.
type fixedProcess struct {
	state domain.OceanState
	panic atomic.Int32 // number of leading steps that panic
}

func (p *fixedProcess) Step(now time.Time) domain.OceanState {
	if p.panic.Add(-1) >= 0 {
		panic("sensor fault")
	}
	s := p.state
	s.Timestamp = now
	return s
}

func (p *fixedProcess) Mode() ocean.Mode { return ocean.ModeDrift }

// neverRand keeps risk alerts out of the log.
type neverRand struct{}

func (neverRand) Float64() float64     { return 0.999 }
func (neverRand) NormFloat64() float64 { return 0 }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSite() pipeline.Site {
	return pipeline.Site{
		City: domain.City{Name: "Testport", BeachSlope: 0.045},
		Sectors: []domain.SectorConfig{
			{Name: "Low Wall", WallHeightM: 0.8, Population: 1000},
			{Name: "Harbour", WallHeightM: 3.0, Population: 500},
		},
		Roads: []domain.RoadConfig{
			{Name: "Shore Road", ElevationM: 0.5},
			{Name: "Ridge Road", ElevationM: 2.0},
		},
		Assets: domain.Assets{
			Shelters: []domain.Shelter{
				{ID: "sh-1", Name: "Town Hall", Capacity: 100, CurrentOccupancy: 10, Status: domain.ShelterOpen},
				{ID: "sh-2", Name: "Stadium", Capacity: 500, Status: domain.ShelterStandby},
			},
			Ports: []domain.Port{{ID: "port-1", Name: "Inner Basin", Status: "Active", Capacity: 40}},
			Drones: []domain.Drone{
				{ID: "alpha", Name: "Alpha", Status: domain.DroneActive, Battery: 80, AltitudeM: 100, SpeedMS: 4, Lat: 10, Lon: 70},
				{ID: "bravo", Name: "Bravo", Status: "STANDBY", Battery: 90, Lat: 10.1, Lon: 70.1},
			},
			Ships: []domain.Ship{
				{ID: "fv-1", Name: "Trawler", SpeedKnots: 10, Lat: 10.2, Lon: 70.2, HeadingDeg: 90},
				{ID: "tnk-1", Name: "Tanker", Status: "Anchored", Lat: 10.3, Lon: 70.3},
			},
		},
		StationID: "BUOY-TEST-01",
	}
}

type fixture struct {
	orch  *pipeline.Orchestrator
	clock *clockwork.FakeClock
	hub   *mockHub
	audit *mockAudit
}

func newFixture(t *testing.T, proc func(clock clockwork.Clock) ocean.Process) fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 12, 10, 0, 0, 0, time.UTC))
	rng := rand.New(rand.NewPCG(1, 2))
	hub := &mockHub{}
	audit := &mockAudit{}

	engine := forecast.NewEngine(forecast.Config{}, nil, rng, discardLogger())
	alerts := alertlog.New(neverRand{}, clock)
	orch := pipeline.New(testSite(), proc(clock), engine, alerts, hub, pipeline.Config{
		Clock: clock,
		Rand:  rng,
		Audit: audit,
	}, discardLogger(), observability.NewMetricsForTesting())

	return fixture{orch: orch, clock: clock, hub: hub, audit: audit}
}

func driftProcess(clock clockwork.Clock) ocean.Process {
	return ocean.NewDrift(rand.New(rand.NewPCG(7, 11)), clock.Now())
}

func calmProcess(clock clockwork.Clock) ocean.Process {
	return &fixedProcess{state: domain.OceanState{
		WaveHeightM: 1.0, WavePeriodS: 8.0, WindSpeedMPS: 5, PressureHPa: 1010, TempC: 28,
	}}
}

// --- tests ---

func TestTick_DriftBreachesLowestWall(t *testing.T) {
	f := newFixture(t, driftProcess)
	f.clock.Advance(500 * time.Millisecond)

	snap := f.orch.Tick(context.Background())

	// First drift tick: H ~ 2.0 m, T ~ 11 s, run-up ~ 1.1 m against a 0.8 m wall.
	assert.Greater(t, snap.Physics.RunupM, 0.8)
	assert.Equal(t, domain.RiskCritical, snap.Physics.OverallRisk)
	assert.True(t, snap.Window.Urgent)
	assert.Zero(t, snap.Window.TotalSeconds)
	assert.Equal(t, "RED ZONE", snap.RiskZone.Zone)
	assert.Equal(t, domain.SectorCritical, snap.Sectors[0].Status)
	assert.Len(t, snap.Forecast, 24)
	assert.GreaterOrEqual(t, snap.Physics.MaxRunupM, 0.0)

	require.NotNil(t, snap.Hybrid)
	assert.Equal(t, domain.SourcePhysicsFallback, snap.Hybrid.Source)
	assert.Equal(t, domain.FallbackNoModel, snap.Hybrid.Learned.FallbackReason)
}

func TestTick_CalmSeaIsHighButNotUrgent(t *testing.T) {
	f := newFixture(t, calmProcess)

	snap := f.orch.Tick(context.Background())

	want := domain.StockdonRunup(1.0, 8.0, 0.045)
	assert.InDelta(t, 0.567, want, 0.005)
	assert.Equal(t, domain.Round(want, 3), snap.Physics.RunupM)
	assert.Equal(t, domain.RiskHigh, snap.Physics.OverallRisk)
	assert.False(t, snap.Window.Urgent)
	assert.Equal(t, 2, snap.Window.Hours)
	assert.Equal(t, "YELLOW ZONE", snap.RiskZone.Zone)
	assert.Equal(t, "2/2", snap.KeyMetrics.SafeRoutes)
	assert.Equal(t, domain.RoadWet, snap.Roads[0].Status)
	assert.Equal(t, domain.RoadDry, snap.Roads[1].Status)
	assert.Equal(t, f.clock.Now(), snap.Ocean.Timestamp)
	assert.Equal(t, "06:00 AM", snap.KeyMetrics.PeakPrediction)
}

func TestTick_KeyMetricsMatchDisplayedOcean(t *testing.T) {
	f := newFixture(t, func(clockwork.Clock) ocean.Process {
		return &fixedProcess{state: domain.OceanState{
			WaveHeightM: 1.0, WavePeriodS: 8.0, WindSpeedMPS: 5, PressureHPa: 1010, TempC: 27.8341,
		}}
	})

	snap := f.orch.Tick(context.Background())

	assert.Equal(t, 27.8, snap.Ocean.TempC)
	assert.Equal(t, snap.Ocean.TempC, snap.KeyMetrics.CoastalTempC)
}

func TestTick_SiteWithoutSectorsIsCalm(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 12, 10, 0, 0, 0, time.UTC))
	rng := rand.New(rand.NewPCG(1, 2))
	hub := &mockHub{}
	orch := pipeline.New(pipeline.Site{City: domain.City{Name: "Nowhere", BeachSlope: 0.045}},
		calmProcess(clock), forecast.NewEngine(forecast.Config{}, nil, rng, discardLogger()),
		alertlog.New(neverRand{}, clock), hub, pipeline.Config{Clock: clock, Rand: rng},
		discardLogger(), observability.NewMetricsForTesting())

	snap := orch.Tick(context.Background())

	assert.Equal(t, domain.RiskSafe, snap.Physics.OverallRisk)
	assert.False(t, snap.Window.Urgent)
	assert.Positive(t, snap.Window.TotalSeconds)
	assert.Equal(t, "GREEN ZONE", snap.RiskZone.Zone)
	assert.Equal(t, 1, hub.count(domain.MessageTelemetry))
}

func TestTick_SheltersFillOnlyOutsideGreenZone(t *testing.T) {
	t.Run("green", func(t *testing.T) {
		f := newFixture(t, func(clockwork.Clock) ocean.Process {
			return &fixedProcess{state: domain.OceanState{
				WaveHeightM: 0.1, WavePeriodS: 4.0, WindSpeedMPS: 2, PressureHPa: 1015, TempC: 28,
			}}
		})
		var snap *domain.Snapshot
		for range 20 {
			snap = f.orch.Tick(context.Background())
		}
		require.Equal(t, domain.ZoneGreen, snap.RiskZone.Zone)
		assert.Equal(t, 10, snap.Shelters[0].CurrentOccupancy)
	})

	t.Run("red", func(t *testing.T) {
		f := newFixture(t, driftProcess)
		var snap *domain.Snapshot
		prev := 10
		for range 200 {
			f.clock.Advance(500 * time.Millisecond)
			snap = f.orch.Tick(context.Background())
			occ := snap.Shelters[0].CurrentOccupancy
			assert.GreaterOrEqual(t, occ, prev)
			assert.LessOrEqual(t, occ, snap.Shelters[0].Capacity)
			prev = occ
		}
		assert.Greater(t, prev, 10)
		assert.Zero(t, snap.Shelters[1].CurrentOccupancy, "standby shelter stays closed")
	})
}

func TestTick_AssetFeedsAdvanceWithoutTouchingSite(t *testing.T) {
	f := newFixture(t, calmProcess)
	site := f.orch.Site()

	first := f.orch.Tick(context.Background())
	firstDrone := first.Drones[0]
	var last *domain.Snapshot
	for range 20 {
		last = f.orch.Tick(context.Background())
	}

	// Snapshots own their copies; later ticks never rewrite earlier ones.
	assert.Equal(t, firstDrone, first.Drones[0])
	assert.NotEqual(t, first.Drones[0].Lat, last.Drones[0].Lat)
	assert.Less(t, last.Drones[0].Battery, site.Assets.Drones[0].Battery)
	assert.Equal(t, site.Assets.Drones[1], last.Drones[1], "standby drone holds position")
	assert.NotEqual(t, site.Assets.Ships[0].Lat, last.Ships[0].Lat)
	assert.Equal(t, site.Assets.Ships[1], last.Ships[1], "anchored ship holds position")
	assert.Equal(t, site.Assets.Ports, last.Ports)
	assert.Equal(t, testSite().Assets, f.orch.Site().Assets)

	var body map[string]any
	require.NoError(t, json.Unmarshal(f.hub.last(domain.MessageTelemetry), &body))
	for _, key := range []string{"shelters", "infrastructure", "ports", "population_hotspots", "drones", "ships"} {
		assert.Contains(t, body, key)
	}
}

func TestTick_PublishesTelemetryAndAudit(t *testing.T) {
	f := newFixture(t, calmProcess)
	ctx := context.Background()

	f.orch.Tick(ctx)
	f.orch.Tick(ctx)

	require.Equal(t, 2, f.hub.count(domain.MessageTelemetry))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(f.hub.last(domain.MessageTelemetry), &decoded))
	assert.Equal(t, "telemetry", decoded["type"])
	assert.EqualValues(t, 2, decoded["tick"])
	for _, key := range []string{"ocean", "physics", "hybrid_prediction", "risk_zone", "window_for_action", "key_metrics", "sectors", "roads", "forecast", "alerts", "system"} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "recording")

	f.audit.mu.Lock()
	defer f.audit.mu.Unlock()
	require.Len(t, f.audit.records, 2)
	assert.Equal(t, uint64(1), f.audit.records[0].Tick)
	assert.Equal(t, "BUOY-TEST-01", f.audit.records[0].StationID)
	assert.Equal(t, "tick", f.audit.records[0].EventType)
}

func TestTick_IncludesRecordingStats(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rng := rand.New(rand.NewPCG(1, 2))
	orch := pipeline.New(testSite(), calmProcess(clock),
		forecast.NewEngine(forecast.Config{}, nil, rng, discardLogger()),
		alertlog.New(neverRand{}, clock), &mockHub{},
		pipeline.Config{Clock: clock, Rand: rng, Recording: mockRecording{}},
		discardLogger(), observability.NewMetricsForTesting())

	snap := orch.Tick(context.Background())

	require.NotNil(t, snap.Recording)
	assert.Equal(t, int64(42), snap.Recording.TotalRecords)
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture(t, calmProcess)
	ctx := context.Background()

	require.Error(t, f.orch.CheckReadiness(ctx))
	assert.Nil(t, f.orch.Latest())

	f.orch.Tick(ctx)

	require.NoError(t, f.orch.CheckReadiness(ctx))
	require.NotNil(t, f.orch.Latest())
	assert.Equal(t, uint64(1), f.orch.Latest().Tick)
}

func TestSystem(t *testing.T) {
	f := newFixture(t, calmProcess)

	sys := f.orch.System()

	assert.Equal(t, "Stockdon2006", sys.PhysicsEngine)
	assert.Equal(t, "Mock", sys.LearnedEngine)
	assert.Equal(t, "CPU (physics)", sys.InferenceDevice)
	assert.False(t, sys.ModelLoaded)
	assert.InDelta(t, 2.0, sys.UpdateHz, 1e-9)
	assert.Equal(t, "hybrid", sys.PredictionMode)
	assert.Equal(t, "drift", sys.OceanMode)
}

func TestRun_TicksOnClockAndStops(t *testing.T) {
	f := newFixture(t, calmProcess)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return f.hub.count(domain.MessageTelemetry) == 1 }, time.Second, 5*time.Millisecond)

	f.clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return f.hub.count(domain.MessageTelemetry) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_RecoversFromPanickingTick(t *testing.T) {
	proc := &fixedProcess{state: domain.OceanState{WaveHeightM: 1.0, WavePeriodS: 8.0}}
	proc.panic.Store(1)
	f := newFixture(t, func(clockwork.Clock) ocean.Process { return proc })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return proc.panic.Load() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, f.hub.count(domain.MessageTelemetry))

	f.clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return f.hub.count(domain.MessageTelemetry) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), f.orch.Latest().Tick)

	cancel()
	require.NoError(t, <-done)
}

func TestSubmit_BroadcastsAlertImmediately(t *testing.T) {
	f := newFixture(t, calmProcess)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	require.NoError(t, f.orch.Submit(ctx, domain.ActionDeployWarning))
	require.Eventually(t, func() bool { return f.hub.count(domain.MessageAlert) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"type":"alert","action":"WARNING_DEPLOYED"}`, string(f.hub.last(domain.MessageAlert)))
	assert.Zero(t, f.hub.count(domain.MessageTelemetry))

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return f.orch.Latest() != nil }, time.Second, 5*time.Millisecond)

	alerts := f.orch.Latest().Alerts
	require.Len(t, alerts, 1)
	assert.Equal(t, "Warning deployed to all zones", alerts[0].Message)
	assert.Equal(t, domain.SeverityHigh, alerts[0].Severity)

	cancel()
	require.NoError(t, <-done)
}

func TestSubmit_UnknownAction(t *testing.T) {
	f := newFixture(t, calmProcess)

	err := f.orch.Submit(context.Background(), domain.Action("SELF_DESTRUCT"))

	assert.True(t, errors.Is(err, domain.ErrUnknownCommand))
}
