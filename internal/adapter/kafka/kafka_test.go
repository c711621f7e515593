package kafka

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 6, 12, 10, 0, 0, 0, time.UTC)
	rec := domain.AuditRecord{
		Timestamp:     now,
		Tick:          42,
		StationID:     "BUOY-MUM-01",
		PhysicsRunupM: 1.1,
		PhysicsRisk:   domain.RiskCritical,
		EventType:     "tick",
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("BUOY-MUM-01"), msg.Key)
	assert.Equal(t, now, msg.Time)
	assert.Contains(t, string(msg.Value), `"physics_risk":"CRITICAL"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("tick"), msg.Headers[0].Value)
	assert.Equal(t, "tick", msg.Headers[1].Key)
	assert.Equal(t, []byte("42"), msg.Headers[1].Value)
	assert.Equal(t, []byte("CRITICAL"), msg.Headers[2].Value)

	var decoded domain.AuditRecord
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, uint64(42), decoded.Tick)
}

func TestNewSink(t *testing.T) {
	s := NewSink([]string{"localhost:9092"}, "aegis-telemetry", slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, "kafka", s.Name())
	assert.Equal(t, "aegis-telemetry", s.writer.Topic)
	require.NoError(t, s.Close())
}
