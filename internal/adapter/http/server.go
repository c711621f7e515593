package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/aegis-cortex/internal/broadcast"
	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/pipeline"
)

const (
	serviceName       = "AEGIS Cortex"
	defaultRecentRows = 50
	maxRecentRows     = 1000
)

// Telemetry is the read side of the tick loop plus its command inlet.
type Telemetry interface {
	sharedobs.ReadinessChecker
	Latest() *domain.Snapshot
	Site() pipeline.Site
	System() domain.SystemInfo
	Submit(ctx context.Context, a domain.Action) error
}

// Recordings exposes the CSV audit recorder.
type Recordings interface {
	Stats() domain.RecordingStats
	Recent(n int) ([]map[string]string, error)
}

// Options configures the server's collaborators.
type Options struct {
	Telemetry        Telemetry
	Hub              *broadcast.Hub
	Recordings       Recordings // nil when recording is disabled
	AllowedOrigins   []string
	SubscriberBuffer int
}

// Server exposes health, readiness, metrics, the read API and the
// WebSocket telemetry stream.
type Server struct {
	httpServer *http.Server
	opts       Options
	ws         *wsHandler
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers every route.
func NewServer(addr string, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		opts:   opts,
		ws:     newWSHandler(opts.Hub, opts.Telemetry, opts.AllowedOrigins, opts.SubscriberBuffer, logger),
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(opts.Telemetry))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /api/system", s.handleSystem)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/model-status", s.handleModelStatus)
	mux.HandleFunc("GET /api/recordings", s.handleRecordings)
	mux.Handle("GET /ws/telemetry", s.ws)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
// Hijacked WebSocket connections are not tracked by net/http; the hub closes
// them.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	site := s.opts.Telemetry.Site()
	body := map[string]any{
		"service":     serviceName,
		"status":      "online",
		"city":        site.City.Name,
		"subscribers": s.opts.Hub.Len(),
	}
	if snap := s.opts.Telemetry.Latest(); snap != nil {
		body["tick"] = snap.Tick
		body["overall_risk"] = snap.Physics.OverallRisk
	}
	sharedobs.WriteJSON(w, http.StatusOK, body)
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	site := s.opts.Telemetry.Site()
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"city":                site.City,
		"sectors":             site.Sectors,
		"roads":               site.Roads,
		"shelters":            site.Assets.Shelters,
		"infrastructure":      site.Assets.Infrastructure,
		"ports":               site.Assets.Ports,
		"population_hotspots": site.Assets.PopulationHotspots,
		"drones":              site.Assets.Drones,
		"ships":               site.Assets.Ships,
		"system":              s.opts.Telemetry.System(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.opts.Telemetry.Latest()
	if snap == nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no snapshot published yet",
		})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleModelStatus(w http.ResponseWriter, _ *http.Request) {
	sys := s.opts.Telemetry.System()
	body := map[string]any{
		"model_loaded":     sys.ModelLoaded,
		"inference_device": sys.InferenceDevice,
		"lstm_engine":      sys.LearnedEngine,
		"physics_engine":   sys.PhysicsEngine,
		"prediction_mode":  sys.PredictionMode,
	}
	if snap := s.opts.Telemetry.Latest(); snap != nil && snap.Hybrid != nil {
		body["last_source"] = snap.Hybrid.Source
		body["last_fallback_reason"] = snap.Hybrid.Learned.FallbackReason
		body["confidence"] = snap.Hybrid.Confidence
		body["alpha"] = snap.Hybrid.Alpha
	}
	sharedobs.WriteJSON(w, http.StatusOK, body)
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if s.opts.Recordings == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "recording disabled"})
		return
	}

	n := defaultRecentRows
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		n = min(parsed, maxRecentRows)
	}

	rows, err := s.opts.Recordings.Recent(n)
	if err != nil {
		s.logger.Error("read recent recordings", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "recordings unavailable"})
		return
	}
	if rows == nil {
		rows = []map[string]string{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"stats":  s.opts.Recordings.Stats(),
		"recent": rows,
	})
}
