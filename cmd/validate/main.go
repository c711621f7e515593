// Command validate checks recorded telemetry CSV files for integrity before
// they are used for audits or model retraining. It verifies the header,
// physical plausibility of every row, consistency of the physics risk with
// the site's lowest wall, and timestamp ordering.
//
// Usage:
//
//	go run ./cmd/validate -dir data/recordings [-site site.yaml]
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/aegis-cortex/internal/adapter/recorder"
	"github.com/couchcryptid/aegis-cortex/internal/config"
	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// classifyTolerance skips the risk check for run-ups this close to a
// classification boundary, since recorded values are rounded.
const classifyTolerance = 0.001

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory containing recording_*.csv files")
	sitePath := flag.String("site", "", "site YAML the recordings were made with (default: built-in Mumbai site)")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	site := config.MumbaiSite()
	if *sitePath != "" {
		s, err := config.LoadSite(*sitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		site = s
	}

	os.Exit(run(*dir, domain.MinWallHeight(site.Sectors)))
}

func run(dir string, minWall float64) int {
	fmt.Println("=== AEGIS Recording Validation ===")
	fmt.Println()

	files, err := filepath.Glob(filepath.Join(dir, "recording_*.csv"))
	if err != nil || len(files) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no recordings found in %s\n", dir)
		return 1
	}
	sort.Strings(files)

	allPassed := true
	total := 0
	for _, path := range files {
		phases, rows, err := validateFile(path, minWall)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", path, err)
			return 1
		}
		total += rows

		fmt.Printf("%s (%d rows)\n", filepath.Base(path), rows)
		for _, p := range phases {
			status := "\033[32mPASS\033[0m"
			if !p.passed() {
				status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
				allPassed = false
			}
			fmt.Printf("  %-36s %s\n", p.name, status)
		}
		for _, p := range phases {
			for i, e := range p.errors {
				if i == 20 {
					fmt.Printf("  ... %d more\n", len(p.errors)-i)
					break
				}
				fmt.Printf("  [%d] %s\n", i+1, e)
			}
		}
	}

	fmt.Printf("\nFiles: %d, rows: %d, lowest wall: %.2fm\n", len(files), total, minWall)
	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// row is a parsed CSV row keyed by column, with its 1-based line number.
type row struct {
	line   int
	fields map[string]string
}

func validateFile(path string, minWall float64) ([]*phase, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, 0, err
	}
	if len(all) == 0 {
		return nil, 0, fmt.Errorf("empty file")
	}

	header := all[0]
	rows := make([]row, 0, len(all)-1)
	for i, rec := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(rec) {
				fields[h] = rec[j]
			}
		}
		rows = append(rows, row{line: i + 2, fields: fields})
	}

	return []*phase{
		validateHeader(header),
		validatePlausibility(rows),
		validatePhysicsRisk(rows, minWall),
		validateHybridColumns(rows),
		validateOrdering(rows),
	}, len(rows), nil
}

// ── Phase 1: Header ──

func validateHeader(header []string) *phase {
	p := &phase{name: "Header"}
	if !slices.Equal(header, recorder.Columns) {
		p.errorf("header %v does not match expected %v", header, recorder.Columns)
	}
	return p
}

// ── Phase 2: Physical plausibility ──

func validatePlausibility(rows []row) *phase {
	p := &phase{name: "Physical plausibility"}
	b := domain.DefaultBounds
	for _, r := range rows {
		checkRange(p, r, "wave_height_m", b.MinWaveHeight, math.Inf(1))
		checkRange(p, r, "period_s", b.MinPeriod, b.MaxPeriod)
		checkRange(p, r, "wind_speed_mps", b.MinWind, math.Inf(1))
		checkRange(p, r, "pressure_hpa", b.MinPressure, b.MaxPressure)
		checkRange(p, r, "physics_runup_m", 0, math.Inf(1))
	}
	return p
}

func checkRange(p *phase, r row, col string, lo, hi float64) {
	v, ok := parseFloat(p, r, col)
	if !ok {
		return
	}
	// Recorded values are rounded; allow half a unit in the last place.
	if v < lo-0.05 || v > hi+0.05 {
		p.errorf("line %d: %s=%g outside [%g, %g]", r.line, col, v, lo, hi)
	}
}

// ── Phase 3: Physics risk ──

func validatePhysicsRisk(rows []row, minWall float64) *phase {
	p := &phase{name: "Physics risk vs lowest wall"}
	for _, r := range rows {
		runup, ok := parseFloat(p, r, "physics_runup_m")
		if !ok {
			continue
		}
		margin := minWall - runup
		if math.Abs(margin) < classifyTolerance || math.Abs(margin-1) < classifyTolerance {
			continue
		}
		want := domain.ClassifyFlood(runup, minWall)
		if got := domain.RiskLevel(r.fields["physics_risk"]); got != want {
			p.errorf("line %d: physics_risk=%s, run-up %.3fm against %.2fm wall gives %s",
				r.line, got, runup, minWall, want)
		}
	}
	return p
}

// ── Phase 4: Learned and hybrid columns ──

var learnedColumns = []string{"lstm_runup_1h", "lstm_runup_3h", "lstm_runup_6h", "lstm_confidence", "hybrid_runup_m", "hybrid_risk"}

func validateHybridColumns(rows []row) *phase {
	p := &phase{name: "Learned/hybrid columns"}
	for _, r := range rows {
		present := 0
		for _, c := range learnedColumns {
			if r.fields[c] != "" {
				present++
			}
		}
		switch present {
		case 0:
			continue
		case len(learnedColumns):
		default:
			p.errorf("line %d: %d of %d learned/hybrid columns set", r.line, present, len(learnedColumns))
			continue
		}

		if conf, ok := parseFloat(p, r, "lstm_confidence"); ok && (conf < 0 || conf > 1) {
			p.errorf("line %d: lstm_confidence=%g outside [0, 1]", r.line, conf)
		}
		switch domain.RiskLevel(r.fields["hybrid_risk"]) {
		case domain.RiskSafe, domain.RiskHigh, domain.RiskCritical:
		default:
			p.errorf("line %d: unknown hybrid_risk %q", r.line, r.fields["hybrid_risk"])
		}
	}
	return p
}

// ── Phase 5: Ordering ──

func validateOrdering(rows []row) *phase {
	p := &phase{name: "Timestamp ordering"}
	var prev time.Time
	for _, r := range rows {
		ts, err := time.Parse(time.RFC3339Nano, r.fields["timestamp"])
		if err != nil {
			p.errorf("line %d: bad timestamp %q", r.line, r.fields["timestamp"])
			continue
		}
		if ts.Before(prev) {
			p.errorf("line %d: timestamp %s before previous %s", r.line, ts.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
		}
		prev = ts
	}
	return p
}

func parseFloat(p *phase, r row, col string) (float64, bool) {
	v, err := strconv.ParseFloat(r.fields[col], 64)
	if err != nil {
		p.errorf("line %d: %s=%q is not a number", r.line, col, r.fields[col])
		return 0, false
	}
	return v, true
}
