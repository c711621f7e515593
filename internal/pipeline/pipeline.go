package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/aegis-cortex/internal/alertlog"
	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/forecast"
	"github.com/couchcryptid/aegis-cortex/internal/observability"
	"github.com/couchcryptid/aegis-cortex/internal/ocean"
)

// Broadcaster fans an encoded message out to subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind string, msg []byte) int
}

// AuditSubmitter accepts audit records without blocking.
type AuditSubmitter interface {
	Submit(rec domain.AuditRecord) bool
}

// RecordingStatter reports audit recorder statistics.
type RecordingStatter interface {
	Stats() domain.RecordingStats
}

// Site is the static configuration of the monitored coast. Immutable once
// the orchestrator is built.
type Site struct {
	City      domain.City
	Sectors   []domain.SectorConfig
	Roads     []domain.RoadConfig
	Assets    domain.Assets
	StationID string
}

// Config holds the orchestrator's optional collaborators and settings.
type Config struct {
	Interval       time.Duration
	PredictionMode string
	Clock          clockwork.Clock
	Rand           domain.Rand
	Audit          AuditSubmitter   // nil disables auditing
	Recording      RecordingStatter // nil omits recording stats
	CommandBuffer  int
}

// Orchestrator owns all mutable simulation state and runs the tick loop. Only
// the loop goroutine touches the ocean process, forecast window, alert log
// and live asset feeds; everything else reads the published snapshot.
type Orchestrator struct {
	site    Site
	process ocean.Process
	engine  *forecast.Engine
	alerts  *alertlog.Log
	assets  domain.Assets
	hub     Broadcaster
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics

	commands chan domain.Action
	latest   atomic.Pointer[domain.Snapshot]
	ready    atomic.Bool
	ticks    uint64
}

// New creates an Orchestrator.
func New(site Site, p ocean.Process, e *forecast.Engine, alerts *alertlog.Log, hub Broadcaster, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.PredictionMode == "" {
		cfg.PredictionMode = "hybrid"
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(cfg.Clock.Now().UnixNano()), 0))
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = 16
	}
	return &Orchestrator{
		site:     site,
		process:  p,
		engine:   e,
		alerts:   alerts,
		assets:   site.Assets.Clone(),
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		commands: make(chan domain.Action, cfg.CommandBuffer),
	}
}

// CheckReadiness returns nil once the first snapshot has been published.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no snapshot published yet")
	}
	return nil
}

// Latest returns the most recent snapshot, or nil before the first tick.
func (o *Orchestrator) Latest() *domain.Snapshot {
	return o.latest.Load()
}

// Site returns the static site configuration.
func (o *Orchestrator) Site() Site { return o.site }

// System describes the engines behind each snapshot.
func (o *Orchestrator) System() domain.SystemInfo {
	return systemInfo(o.engine, o.process.Mode(), o.cfg)
}

// Submit queues an operator action for the loop. It blocks only while the
// command queue is full.
func (o *Orchestrator) Submit(ctx context.Context, a domain.Action) error {
	if _, ok := a.Describe(); !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCommand, a)
	}
	select {
	case o.commands <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the tick loop until ctx is cancelled. A panic inside a tick is
// recovered and logged; the loop keeps running.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("tick loop started",
		"interval", o.cfg.Interval,
		"ocean_mode", o.process.Mode(),
		"sectors", len(o.site.Sectors),
		"roads", len(o.site.Roads),
	)
	o.metrics.LoopRunning.Set(1)
	defer o.metrics.LoopRunning.Set(0)

	ticker := o.cfg.Clock.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("tick loop stopping", "reason", ctx.Err(), "ticks", o.ticks)
			return nil
		case <-ticker.Chan():
			o.safeTick(ctx)
		case a := <-o.commands:
			o.handleCommand(ctx, a)
		}
	}
}

func (o *Orchestrator) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.TickPanics.Inc()
			o.logger.Error("tick panicked", "tick", o.ticks, "panic", r)
		}
	}()
	o.Tick(ctx)
}

// Tick runs one cycle: advance the ocean, derive every risk product from
// that single state, publish the snapshot and hand it to the hub and the
// audit queue. It must only be called from the loop goroutine (or in tests
// instead of Run).
func (o *Orchestrator) Tick(ctx context.Context) *domain.Snapshot {
	start := o.cfg.Clock.Now()
	o.ticks++

	state := o.process.Step(start)
	o.engine.Observe(state)

	snap := o.assemble(ctx, state)
	o.latest.Store(snap)
	o.ready.Store(true)

	if data, err := json.Marshal(snap); err != nil {
		o.logger.Error("encode snapshot", "tick", snap.Tick, "error", err)
	} else {
		o.hub.Broadcast(ctx, domain.MessageTelemetry, data)
	}

	if o.cfg.Audit != nil && !o.cfg.Audit.Submit(domain.NewAuditRecord(snap, o.site.StationID)) {
		o.logger.Debug("audit queue full, record dropped", "tick", snap.Tick)
	}

	o.metrics.Ticks.Inc()
	o.metrics.TickDuration.Observe(o.cfg.Clock.Since(start).Seconds())
	return snap
}

func (o *Orchestrator) handleCommand(ctx context.Context, a domain.Action) {
	op, ok := a.Describe()
	if !ok {
		return
	}
	alert := o.alerts.Operator(op)
	o.metrics.Alerts.WithLabelValues(string(alert.Kind), string(alert.Severity)).Inc()
	o.logger.Info("operator action", "action", a, "notice", op.Notice)

	data, err := json.Marshal(domain.NewAlertMessage(op))
	if err != nil {
		o.logger.Error("encode alert", "error", err)
		return
	}
	o.hub.Broadcast(ctx, domain.MessageAlert, data)
}
