// Package recorder appends audit records to daily-rotating CSV files for
// audit trails and model retraining.
package recorder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// Columns is the CSV header, in order.
var Columns = []string{
	"timestamp", "station_id",
	"wave_height_m", "period_s", "temp_c", "wind_speed_mps", "pressure_hpa",
	"physics_runup_m", "physics_risk",
	"lstm_runup_1h", "lstm_runup_3h", "lstm_runup_6h", "lstm_confidence",
	"hybrid_runup_m", "hybrid_risk",
	"inference_device", "model_loaded", "prediction_mode",
	"is_cyclone", "event_type",
}

const (
	filePrefix = "recording_"
	dateLayout = time.DateOnly
)

// Recorder is a CSV audit sink. Write, Stats and Recent are safe for
// concurrent use.
type Recorder struct {
	baseDir string
	clock   clockwork.Clock
	logger  *slog.Logger
	session time.Time

	mu     sync.Mutex
	date   string
	file   *os.File
	writer *csv.Writer
	total  int64
	files  int
}

// New creates the base directory if needed and counts existing recordings.
func New(baseDir string, clock clockwork.Clock, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	files, err := countRecordings(baseDir)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		baseDir: baseDir,
		clock:   clock,
		logger:  logger,
		session: clock.Now(),
		files:   files,
	}
	logger.Info("recorder started", "session", uuid.NewString(), "base_dir", baseDir, "files", files)
	return r, nil
}

// Name identifies the sink in logs and metrics.
func (r *Recorder) Name() string { return "csv" }

// Write appends rec to today's file, rotating at midnight.
func (r *Recorder) Write(_ context.Context, rec domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureFile(r.clock.Now().Format(dateLayout)); err != nil {
		return err
	}
	if err := r.writer.Write(row(rec)); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		return fmt.Errorf("flush recording: %w", err)
	}
	r.total++
	return nil
}

func (r *Recorder) ensureFile(date string) error {
	if r.date == date && r.file != nil {
		return nil
	}
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}

	path := r.path(date)
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open recording %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(Columns); err != nil {
			_ = f.Close()
			return fmt.Errorf("write header: %w", err)
		}
		r.files++
	}

	r.file, r.writer, r.date = f, w, date
	r.logger.Info("recording file opened", "path", path, "new", isNew)
	return nil
}

// Stats summarises the recorder.
func (r *Recorder) Stats() domain.RecordingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RecordingStats{
		SessionStart: r.session.Format(time.RFC3339),
		TotalRecords: r.total,
		Files:        r.files,
		CurrentDate:  r.date,
		BaseDir:      r.baseDir,
	}
}

// Recent returns up to n of today's rows, oldest first, keyed by column.
func (r *Recorder) Recent(n int) ([]map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path(r.clock.Now().Format(dateLayout)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read recording: %w", err)
		}
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				m[col] = rec[i]
			}
		}
		rows = append(rows, m)
	}
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

// Close closes the current file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Recorder) path(date string) string {
	return filepath.Join(r.baseDir, filePrefix+date+".csv")
}

func countRecordings(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("list recordings: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) {
			n++
		}
	}
	return n, nil
}

func row(rec domain.AuditRecord) []string {
	out := []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.StationID,
		formatFloat(rec.Ocean.WaveHeightM),
		formatFloat(rec.Ocean.WavePeriodS),
		formatFloat(rec.Ocean.TempC),
		formatFloat(rec.Ocean.WindSpeedMPS),
		formatFloat(rec.Ocean.PressureHPa),
		formatFloat(rec.PhysicsRunupM),
		string(rec.PhysicsRisk),
		"", "", "", "",
		"",
		string(rec.HybridRisk),
		rec.InferenceDevice,
		strconv.FormatBool(rec.ModelLoaded),
		rec.PredictionMode,
		strconv.FormatBool(rec.IsCyclone),
		rec.EventType,
	}
	if l := rec.Learned; l != nil {
		out[9] = formatFloat(l.Runup1h)
		out[10] = formatFloat(l.Runup3h)
		out[11] = formatFloat(l.Runup6h)
		out[12] = formatFloat(l.Confidence)
	}
	if rec.HybridRunupM != nil {
		out[13] = formatFloat(*rec.HybridRunupM)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
