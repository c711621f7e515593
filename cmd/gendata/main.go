// Command gendata runs the simulator headless on a simulated clock and
// writes the resulting audit records as CSV recordings, producing training
// and replay data without waiting in real time.
//
// Usage:
//
//	go run ./cmd/gendata \
//	  -out data/training \
//	  -ticks 172800 -interval 30s \
//	  -mode stochastic -seed 42
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/aegis-cortex/internal/adapter/recorder"
	"github.com/couchcryptid/aegis-cortex/internal/alertlog"
	"github.com/couchcryptid/aegis-cortex/internal/config"
	"github.com/couchcryptid/aegis-cortex/internal/domain"
	"github.com/couchcryptid/aegis-cortex/internal/forecast"
	"github.com/couchcryptid/aegis-cortex/internal/observability"
	"github.com/couchcryptid/aegis-cortex/internal/ocean"
	"github.com/couchcryptid/aegis-cortex/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for recording_*.csv files")
	ticks := flag.Uint64("ticks", 2880, "number of ticks to simulate")
	interval := flag.Duration("interval", 30*time.Second, "simulated time between ticks")
	mode := flag.String("mode", "stochastic", "ocean mode: drift or stochastic")
	seed := flag.Uint64("seed", 1, "random seed")
	cycloneRate := flag.Float64("cyclone-rate", 0.0005, "per-tick cyclone spawn probability")
	start := flag.String("start", "2026-06-01T00:00:00Z", "simulated start time (RFC3339)")
	sitePath := flag.String("site", "", "site YAML (default: built-in Mumbai site)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	m, err := ocean.ParseMode(*mode)
	if err != nil {
		return err
	}
	site := config.MumbaiSite()
	if *sitePath != "" {
		if site, err = config.LoadSite(*sitePath); err != nil {
			return err
		}
	}

	stats, err := generate(context.Background(), genConfig{
		Out:         *out,
		Ticks:       *ticks,
		Interval:    *interval,
		Mode:        m,
		Seed:        *seed,
		CycloneRate: *cycloneRate,
		Start:       startAt,
		Site:        site,
	})
	if err != nil {
		return err
	}
	printStats(stats)
	return nil
}

type genConfig struct {
	Out         string
	Ticks       uint64
	Interval    time.Duration
	Mode        ocean.Mode
	Seed        uint64
	CycloneRate float64
	Start       time.Time
	Site        *config.Site
}

// genStats summarises a generated run.
type genStats struct {
	Ticks        uint64
	Risk         map[domain.RiskLevel]int
	CycloneTicks int
	MaxRunupM    float64
	Files        int
	Dropped      int
}

// syncRecorder writes each record as it is submitted. Headless runs have no
// tick deadline, so nothing is queued.
type syncRecorder struct {
	rec     *recorder.Recorder
	stats   *genStats
	dropped int
}

func (s *syncRecorder) Submit(rec domain.AuditRecord) bool {
	if err := s.rec.Write(context.Background(), rec); err != nil {
		log.Printf("tick %d: %v", rec.Tick, err)
		s.dropped++
		return false
	}
	s.stats.Risk[rec.PhysicsRisk]++
	if rec.IsCyclone {
		s.stats.CycloneTicks++
	}
	s.stats.MaxRunupM = max(s.stats.MaxRunupM, rec.PhysicsRunupM)
	return true
}

type discardHub struct{}

func (discardHub) Broadcast(context.Context, string, []byte) int { return 0 }

// stochasticConfig reports the site's own buoy, falling back to the first
// station when the site's ID is not in the network.
func stochasticConfig(cfg genConfig, logger *slog.Logger) ocean.StochasticConfig {
	return ocean.StochasticConfig{
		Stations:    ocean.DefaultStations,
		Primary:     slices.Index(ocean.DefaultStations, cfg.Site.StationID),
		CycloneRate: cfg.CycloneRate,
		Logger:      logger,
	}
}

func generate(ctx context.Context, cfg genConfig) (genStats, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(cfg.Start)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1))

	process, err := ocean.New(cfg.Mode, rng, cfg.Start, stochasticConfig(cfg, logger))
	if err != nil {
		return genStats{}, err
	}

	rec, err := recorder.New(cfg.Out, clock, logger)
	if err != nil {
		return genStats{}, err
	}
	defer rec.Close()

	stats := genStats{Risk: map[domain.RiskLevel]int{}}
	sink := &syncRecorder{rec: rec, stats: &stats}

	orch := pipeline.New(
		pipeline.Site{
			City:      cfg.Site.City,
			Sectors:   cfg.Site.Sectors,
			Roads:     cfg.Site.Roads,
			Assets:    cfg.Site.Assets,
			StationID: cfg.Site.StationID,
		},
		process,
		forecast.NewEngine(forecast.Config{}, nil, rng, logger),
		alertlog.New(rng, clock),
		discardHub{},
		pipeline.Config{Interval: cfg.Interval, Clock: clock, Rand: rng, Audit: sink},
		logger,
		observability.NewMetricsForTesting(),
	)

	for i := uint64(0); i < cfg.Ticks; i++ {
		clock.Advance(cfg.Interval)
		orch.Tick(ctx)
		if i > 0 && i%10000 == 0 {
			log.Printf("%d/%d ticks", i, cfg.Ticks)
		}
	}

	stats.Ticks = cfg.Ticks
	stats.Files = rec.Stats().Files
	stats.Dropped = sink.dropped
	return stats, nil
}

func printStats(s genStats) {
	fmt.Println()
	fmt.Println("=== Generated Recording Stats ===")
	fmt.Printf("Ticks:          %d\n", s.Ticks)
	fmt.Printf("Files:          %d\n", s.Files)
	fmt.Printf("Cyclone ticks:  %d\n", s.CycloneTicks)
	fmt.Printf("Max run-up:     %.3fm\n", s.MaxRunupM)
	for _, level := range []domain.RiskLevel{domain.RiskSafe, domain.RiskHigh, domain.RiskCritical} {
		fmt.Printf("  %-9s %d\n", level, s.Risk[level])
	}
	if s.Dropped > 0 {
		fmt.Printf("Dropped:        %d\n", s.Dropped)
	}
}
