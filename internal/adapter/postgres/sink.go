// Package postgres stores audit records in a telemetry_records table for
// long-term analysis and model retraining.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS telemetry_records (
	id               BIGSERIAL PRIMARY KEY,
	recorded_at      TIMESTAMPTZ      NOT NULL,
	tick             BIGINT           NOT NULL,
	station_id       TEXT             NOT NULL,
	wave_height_m    DOUBLE PRECISION NOT NULL,
	period_s         DOUBLE PRECISION NOT NULL,
	temp_c           DOUBLE PRECISION NOT NULL,
	wind_speed_mps   DOUBLE PRECISION NOT NULL,
	pressure_hpa     DOUBLE PRECISION NOT NULL,
	physics_runup_m  DOUBLE PRECISION NOT NULL,
	physics_risk     TEXT             NOT NULL,
	lstm_runup_1h    DOUBLE PRECISION,
	lstm_runup_3h    DOUBLE PRECISION,
	lstm_runup_6h    DOUBLE PRECISION,
	lstm_confidence  DOUBLE PRECISION,
	hybrid_runup_m   DOUBLE PRECISION,
	hybrid_risk      TEXT,
	inference_device TEXT             NOT NULL,
	model_loaded     BOOLEAN          NOT NULL,
	prediction_mode  TEXT             NOT NULL,
	is_cyclone       BOOLEAN          NOT NULL,
	event_type       TEXT             NOT NULL
);
CREATE INDEX IF NOT EXISTS telemetry_records_station_time
	ON telemetry_records (station_id, recorded_at);
`

const insertRecord = `
INSERT INTO telemetry_records (
	recorded_at, tick, station_id,
	wave_height_m, period_s, temp_c, wind_speed_mps, pressure_hpa,
	physics_runup_m, physics_risk,
	lstm_runup_1h, lstm_runup_3h, lstm_runup_6h, lstm_confidence,
	hybrid_runup_m, hybrid_risk,
	inference_device, model_loaded, prediction_mode,
	is_cyclone, event_type
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

// Sink inserts one row per audit record.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Sink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	return NewSink(db, logger), nil
}

// NewSink wraps an existing connection pool.
func NewSink(db *sql.DB, logger *slog.Logger) *Sink {
	return &Sink{db: db, logger: logger}
}

// EnsureSchema creates the table and index if they do not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "postgres" }

// Write inserts rec.
func (s *Sink) Write(ctx context.Context, rec domain.AuditRecord) error {
	var l1, l3, l6, conf, hybrid sql.NullFloat64
	if l := rec.Learned; l != nil {
		l1 = sql.NullFloat64{Float64: l.Runup1h, Valid: true}
		l3 = sql.NullFloat64{Float64: l.Runup3h, Valid: true}
		l6 = sql.NullFloat64{Float64: l.Runup6h, Valid: true}
		conf = sql.NullFloat64{Float64: l.Confidence, Valid: true}
	}
	if rec.HybridRunupM != nil {
		hybrid = sql.NullFloat64{Float64: *rec.HybridRunupM, Valid: true}
	}
	hybridRisk := sql.NullString{String: string(rec.HybridRisk), Valid: rec.HybridRisk != ""}

	_, err := s.db.ExecContext(ctx, insertRecord,
		rec.Timestamp, int64(rec.Tick), rec.StationID,
		rec.Ocean.WaveHeightM, rec.Ocean.WavePeriodS, rec.Ocean.TempC, rec.Ocean.WindSpeedMPS, rec.Ocean.PressureHPa,
		rec.PhysicsRunupM, string(rec.PhysicsRisk),
		l1, l3, l6, conf,
		hybrid, hybridRisk,
		rec.InferenceDevice, rec.ModelLoaded, rec.PredictionMode,
		rec.IsCyclone, rec.EventType,
	)
	if err != nil {
		return fmt.Errorf("insert telemetry record: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Sink) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Sink) Close() error {
	s.logger.Info("closing postgres sink")
	return s.db.Close()
}
