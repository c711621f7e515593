package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/aegis-cortex/internal/config"
)

func restoreDefaultLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestNewLogger_JSONWithService(t *testing.T) {
	restoreDefaultLogger(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	logger := NewLogger(&config.Config{LogLevel: "warn", LogFormat: "json"})
	os.Stdout = orig

	logger.Info("hidden")
	logger.Warn("shown", "tick", 3)
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	_ = r.Close()

	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	require.Len(t, lines, 1)
	var line map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "aegis-cortex", line["service"])
	assert.EqualValues(t, 3, line["tick"])
}

func TestNewLogger_InstallsDefault(t *testing.T) {
	restoreDefaultLogger(t)

	logger := NewLogger(&config.Config{LogLevel: "debug", LogFormat: "TEXT"})

	assert.Same(t, logger, slog.Default())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogger_DefaultsToInfo(t *testing.T) {
	restoreDefaultLogger(t)

	logger := NewLogger(&config.Config{LogLevel: "bogus"})

	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.Ticks.Inc()
	a.Predictions.WithLabelValues("LEARNED", "").Inc()

	assert.Equal(t, 1.0, counterValue(t, a.Ticks))
	assert.Equal(t, 0.0, counterValue(t, b.Ticks))
	assert.Equal(t, 1.0, counterValue(t, a.Predictions.WithLabelValues("LEARNED", "")))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
