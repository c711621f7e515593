package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/aegis-cortex/internal/adapter/http"
	"github.com/couchcryptid/aegis-cortex/internal/broadcast"
	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/observability"
	"github.com/couchcryptid/aegis-cortex/internal/pipeline"
)

// --- mocks ---

type mockTelemetry struct {
	mu       sync.Mutex
	readyErr error
	latest   *domain.Snapshot
	actions  []domain.Action
}

func (m *mockTelemetry) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockTelemetry) Latest() *domain.Snapshot { return m.latest }

func (m *mockTelemetry) Site() pipeline.Site {
	return pipeline.Site{
		City:    domain.City{Name: "Mumbai", BeachSlope: 0.035},
		Sectors: []domain.SectorConfig{{Name: "Colaba", WallHeightM: 2.8, Population: 18000}},
		Roads:   []domain.RoadConfig{{Name: "Marine Drive", ElevationM: 1.8}},
		Assets: domain.Assets{
			Shelters: []domain.Shelter{{ID: "sh-1", Name: "KEM Hospital", Capacity: 1500, CurrentOccupancy: 450, Status: domain.ShelterOpen}},
			Infrastructure: []domain.Infrastructure{
				{Name: "Bandra-Worli Sea Link", Type: "bridge", Score: 94},
				{Name: "Tata Power Trombay", Type: "power", Score: 82},
			},
			Ports:              []domain.Port{{ID: "port-2", Name: "Sassoon Docks", Status: "Congested", Capacity: 95}},
			PopulationHotspots: []domain.PopulationHotspot{{Label: "Dharavi", Density: "Very High", Count: 65000}},
			Drones:             []domain.Drone{{ID: "alpha", Name: "Alpha", Status: domain.DroneActive, Battery: 78}},
			Ships:              []domain.Ship{{ID: "mv-102", Name: "INS Teg", SpeedKnots: 18, HeadingDeg: 290}},
		},
	}
}

func (m *mockTelemetry) System() domain.SystemInfo {
	return domain.SystemInfo{
		InferenceDevice: "CPU (physics)",
		PhysicsEngine:   "Stockdon2006",
		LearnedEngine:   "Mock",
		PredictionMode:  "hybrid",
		OceanMode:       "drift",
		UpdateHz:        2,
	}
}

func (m *mockTelemetry) Submit(_ context.Context, a domain.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

func (m *mockTelemetry) submitted() []domain.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Action(nil), m.actions...)
}

type mockRecordings struct {
	rows  []map[string]string
	err   error
	asked int
}

func (m *mockRecordings) Stats() domain.RecordingStats {
	return domain.RecordingStats{TotalRecords: int64(len(m.rows)), Files: 1, BaseDir: "data/recordings"}
}

func (m *mockRecordings) Recent(n int) ([]map[string]string, error) {
	m.asked = n
	return m.rows, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv *httpadapter.Server
	tel *mockTelemetry
	hub *broadcast.Hub
}

func newTestEnv(tel *mockTelemetry, rec httpadapter.Recordings, origins ...string) testEnv {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	hub := broadcast.NewHub(discardLogger(), observability.NewMetricsForTesting())
	srv := httpadapter.NewServer(":0", httpadapter.Options{
		Telemetry:        tel,
		Hub:              hub,
		Recordings:       rec,
		AllowedOrigins:   origins,
		SubscriberBuffer: 8,
	}, discardLogger())
	return testEnv{srv: srv, tel: tel, hub: hub}
}

func get(t *testing.T, srv http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)

	rec, body := get(t, env.srv, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)

	rec, body := get(t, env.srv, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	env := newTestEnv(&mockTelemetry{readyErr: fmt.Errorf("no snapshot published yet")}, nil)

	rec, body := get(t, env.srv, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no snapshot published yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)

	rec, _ := get(t, env.srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- read API ---

func TestStatus(t *testing.T) {
	tel := &mockTelemetry{latest: &domain.Snapshot{Tick: 7, Physics: domain.Physics{OverallRisk: domain.RiskHigh}}}
	env := newTestEnv(tel, nil)

	rec, body := get(t, env.srv, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "Mumbai", body["city"])
	assert.EqualValues(t, 7, body["tick"])
	assert.Equal(t, "HIGH", body["overall_risk"])
	assert.EqualValues(t, 0, body["subscribers"])
}

func TestUnknownPathIs404(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)

	rec, _ := get(t, env.srv, "/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystem(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)

	rec, body := get(t, env.srv, "/api/system")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mumbai", body["city"].(map[string]any)["name"])
	assert.Len(t, body["sectors"], 1)
	assert.Len(t, body["roads"], 1)
	assert.Len(t, body["infrastructure"], 2)
	assert.Len(t, body["ports"], 1)
	assert.Len(t, body["population_hotspots"], 1)
	require.Len(t, body["shelters"], 1)
	shelter := body["shelters"].([]any)[0].(map[string]any)
	assert.Equal(t, "KEM Hospital", shelter["name"])
	assert.EqualValues(t, 450, shelter["current_occupancy"])
	require.Len(t, body["drones"], 1)
	assert.Equal(t, "ACTIVE", body["drones"].([]any)[0].(map[string]any)["status"])
	require.Len(t, body["ships"], 1)
	assert.EqualValues(t, 290, body["ships"].([]any)[0].(map[string]any)["heading"])
	sys := body["system"].(map[string]any)
	assert.Equal(t, "Stockdon2006", sys["physics_engine"])
	assert.Equal(t, "Mock", sys["lstm_engine"])
}

func TestSnapshot_503BeforeFirstTick(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)

	rec, body := get(t, env.srv, "/api/snapshot")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, body["error"], "no snapshot")
}

func TestSnapshot_ReturnsLatest(t *testing.T) {
	tel := &mockTelemetry{latest: &domain.Snapshot{Type: domain.MessageTelemetry, Tick: 3}}
	env := newTestEnv(tel, nil)

	rec, body := get(t, env.srv, "/api/snapshot")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "telemetry", body["type"])
	assert.EqualValues(t, 3, body["tick"])
}

func TestModelStatus(t *testing.T) {
	hybrid := &domain.HybridPrediction{
		Source:     domain.SourcePhysicsFallback,
		Confidence: 0.45,
		Alpha:      0.6,
		Learned:    domain.LearnedPrediction{FallbackReason: domain.FallbackNoModel},
	}
	env := newTestEnv(&mockTelemetry{latest: &domain.Snapshot{Hybrid: hybrid}}, nil)

	rec, body := get(t, env.srv, "/api/model-status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["model_loaded"])
	assert.Equal(t, "CPU (physics)", body["inference_device"])
	assert.Equal(t, "PHYSICS_FALLBACK", body["last_source"])
	assert.Equal(t, "no_model", body["last_fallback_reason"])
}

func TestRecordings_Disabled(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)

	rec, body := get(t, env.srv, "/api/recordings")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "recording disabled", body["error"])
}

func TestRecordings_StatsAndRecent(t *testing.T) {
	recs := &mockRecordings{rows: []map[string]string{{"station_id": "BUOY-MUM-01", "physics_risk": "SAFE"}}}
	env := newTestEnv(&mockTelemetry{}, recs)

	rec, body := get(t, env.srv, "/api/recordings")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, recs.asked)
	assert.EqualValues(t, 1, body["stats"].(map[string]any)["total_records"])
	require.Len(t, body["recent"], 1)

	_, _ = get(t, env.srv, "/api/recordings?limit=5000")
	assert.Equal(t, 1000, recs.asked)
}

func TestRecordings_BadLimit(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, &mockRecordings{})

	rec, _ := get(t, env.srv, "/api/recordings?limit=-2")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordings_ReadError(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, &mockRecordings{err: errors.New("disk gone")})

	rec, _ := get(t, env.srv, "/api/recordings")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- websocket ---

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/telemetry"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_ReceivesBroadcasts(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	conn := dial(t, ts, nil)
	require.Eventually(t, func() bool { return env.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	env.hub.Broadcast(context.Background(), domain.MessageTelemetry, []byte(`{"type":"telemetry","tick":1}`))
	env.hub.Broadcast(context.Background(), domain.MessageTelemetry, []byte(`{"type":"telemetry","tick":2}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for _, want := range []string{`{"type":"telemetry","tick":1}`, `{"type":"telemetry","tick":2}`} {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, want, string(msg))
	}
}

func TestWebSocket_CommandsReachTheLoop(t *testing.T) {
	tel := &mockTelemetry{}
	env := newTestEnv(tel, nil)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	conn := dial(t, ts, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"command","action":"DEPLOY_WARNING"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("please AUTHORIZE everything")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(" authorize ")))

	require.Eventually(t, func() bool { return len(tel.submitted()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.Action{domain.ActionDeployWarning, domain.ActionAuthorizeEvacuation}, tel.submitted())
	assert.Equal(t, 1, env.hub.Len(), "unknown input must not close the connection")
}

func TestWebSocket_DisconnectRemovesSubscriber(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil)
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	conn := dial(t, ts, nil)
	require.Eventually(t, func() bool { return env.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return env.hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(&mockTelemetry{}, nil, "https://ops.example.com")
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/telemetry"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, ts, http.Header{"Origin": []string{"https://ops.example.com"}})
	assert.NotNil(t, conn)
}
