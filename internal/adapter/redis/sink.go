// Package redis appends audit records to a capped Redis stream so dashboards
// and replay tools can tail recent ticks.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// streamClient is the subset of the go-redis client used by Sink.
type streamClient interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Sink writes one stream entry per audit record. The stream is trimmed
// approximately to maxLen entries.
type Sink struct {
	client streamClient
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewSink connects to the Redis server at addr.
func NewSink(addr, stream string, maxLen int64, logger *slog.Logger) *Sink {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	return newSink(client, stream, maxLen, logger)
}

func newSink(client streamClient, stream string, maxLen int64, logger *slog.Logger) *Sink {
	return &Sink{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (s *Sink) Name() string { return "redis" }

// Write appends rec to the stream.
func (s *Sink) Write(ctx context.Context, rec domain.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize audit record: %w", err)
	}
	args := &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"station_id":   rec.StationID,
			"tick":         strconv.FormatUint(rec.Tick, 10),
			"physics_risk": string(rec.PhysicsRisk),
			"record":       string(data),
		},
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// CheckReadiness pings the server.
func (s *Sink) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Sink) Close() error {
	s.logger.Info("closing redis sink", "stream", s.stream)
	return s.client.Close()
}
