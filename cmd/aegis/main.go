package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/aegis-cortex/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/aegis-cortex/internal/adapter/kafka"
	"github.com/couchcryptid/aegis-cortex/internal/adapter/postgres"
	"github.com/couchcryptid/aegis-cortex/internal/adapter/predictor"
	"github.com/couchcryptid/aegis-cortex/internal/adapter/recorder"
	redisadapter "github.com/couchcryptid/aegis-cortex/internal/adapter/redis"
	"github.com/couchcryptid/aegis-cortex/internal/alertlog"
	"github.com/couchcryptid/aegis-cortex/internal/audit"
	"github.com/couchcryptid/aegis-cortex/internal/broadcast"
	"github.com/couchcryptid/aegis-cortex/internal/config"
	"github.com/couchcryptid/aegis-cortex/internal/forecast"
	"github.com/couchcryptid/aegis-cortex/internal/observability"
	"github.com/couchcryptid/aegis-cortex/internal/ocean"
	"github.com/couchcryptid/aegis-cortex/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(clock.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1))
	logger.Info("simulation seeded", "seed", seed, "ocean_mode", cfg.OceanMode)

	mode, err := ocean.ParseMode(cfg.OceanMode)
	if err != nil {
		logger.Error("invalid ocean mode", "error", err)
		os.Exit(1)
	}
	process, err := ocean.New(mode, rng, clock.Now(), ocean.StochasticConfig{
		Stations:    ocean.DefaultStations,
		Primary:     slices.Index(ocean.DefaultStations, cfg.Site.StationID),
		CycloneRate: cfg.CycloneRate,
		MinDuration: cfg.CycloneMinTicks,
		MaxDuration: cfg.CycloneMaxTicks,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to build ocean process", "error", err)
		os.Exit(1)
	}

	engine, err := buildEngine(cfg, rng, logger)
	if err != nil {
		logger.Error("failed to build forecast engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, rec, err := buildSinks(ctx, cfg, clock, logger)
	if err != nil {
		logger.Error("failed to build audit sinks", "error", err)
		os.Exit(1)
	}
	dispatcher := audit.NewDispatcher(sinks, cfg.AuditBuffer, clock, logger, metrics)

	hub := broadcast.NewHub(logger, metrics)
	pcfg := pipeline.Config{
		Interval: cfg.TickInterval,
		Clock:    clock,
		Rand:     rng,
	}
	if len(sinks) > 0 {
		pcfg.Audit = dispatcher
	}
	opts := httpadapter.Options{
		Hub:              hub,
		AllowedOrigins:   cfg.AllowedOrigins,
		SubscriberBuffer: cfg.SubscriberBuffer,
	}
	if rec != nil {
		pcfg.Recording = rec
		opts.Recordings = rec
	}

	site := pipeline.Site{
		City:      cfg.Site.City,
		Sectors:   cfg.Site.Sectors,
		Roads:     cfg.Site.Roads,
		Assets:    cfg.Site.Assets,
		StationID: cfg.Site.StationID,
	}
	orch := pipeline.New(site, process, engine, alertlog.New(rng, clock), hub, pcfg, logger, metrics)
	opts.Telemetry = orch

	srv := httpadapter.NewServer(cfg.HTTPAddr, opts, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func buildEngine(cfg *config.Config, rng *rand.Rand, logger *slog.Logger) (*forecast.Engine, error) {
	ecfg := forecast.Config{
		Window:  cfg.ForecastWindow,
		Alpha:   cfg.ForecastAlpha,
		Timeout: cfg.PredictorTimeout,
	}
	if cfg.PredictorURL == "" {
		logger.Info("learned predictor disabled, physics forecast only")
		return forecast.NewEngine(ecfg, nil, rng, logger), nil
	}

	var scaler *predictor.Scaler
	if cfg.PredictorScalerPath != "" {
		s, err := predictor.LoadScaler(cfg.PredictorScalerPath)
		if err != nil {
			return nil, err
		}
		scaler = s
	}
	if cfg.PredictorTargetScalePath != "" {
		ts, err := predictor.LoadTargetScale(cfg.PredictorTargetScalePath)
		if err != nil {
			return nil, err
		}
		ecfg.Scale = ts
	}

	client, err := predictor.NewClient(cfg.PredictorURL, scaler, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("learned predictor enabled",
		"device", client.Device(), "scaler_loaded", client.ScalerLoaded(), "timeout", cfg.PredictorTimeout)
	return forecast.NewEngine(ecfg, client, rng, logger), nil
}

// buildSinks returns every configured audit sink. The CSV recorder is also
// returned on its own so the API can expose its stats and rows.
func buildSinks(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) ([]audit.Sink, *recorder.Recorder, error) {
	var (
		sinks []audit.Sink
		rec   *recorder.Recorder
	)

	if cfg.RecordingEnabled() {
		r, err := recorder.New(cfg.RecordingsDir, clock, logger)
		if err != nil {
			return nil, nil, err
		}
		rec = r
		sinks = append(sinks, r)
	} else {
		logger.Info("csv recording disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, kafkaadapter.NewSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger))
		logger.Info("kafka audit sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAuditTopic)
	}

	if cfg.RedisAddr != "" {
		rs := redisadapter.NewSink(cfg.RedisAddr, cfg.RedisStream, cfg.RedisStreamMaxLen, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rs.CheckReadiness(pingCtx); err != nil {
			logger.Warn("redis not reachable yet, writes will retry", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
		sinks = append(sinks, rs)
		logger.Info("redis audit sink enabled", "stream", cfg.RedisStream)
	}

	if cfg.PostgresDSN != "" {
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		ps, err := postgres.Open(connCtx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := ps.EnsureSchema(connCtx); err != nil {
			_ = ps.Close()
			return nil, nil, err
		}
		sinks = append(sinks, ps)
		logger.Info("postgres audit sink enabled")
	}

	return sinks, rec, nil
}
