package predictor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/couchcryptid/aegis-cortex/internal/forecast"
)

// featureCount is the width of domain.OceanState.Features.
const featureCount = 5

// Scaler is the per-feature min-max normalization fitted at training time.
type Scaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// Transform maps features into the training range. A nil scaler returns the
// input unchanged; zero-width ranges divide by one.
func (s *Scaler) Transform(features []float64) []float64 {
	if s == nil {
		return features
	}
	out := make([]float64, len(features))
	for i, v := range features {
		rng := s.Max[i] - s.Min[i]
		if rng == 0 {
			rng = 1
		}
		out[i] = (v - s.Min[i]) / rng
	}
	return out
}

// LoadScaler reads a {"min": [...], "max": [...]} artifact.
func LoadScaler(path string) (*Scaler, error) {
	var s Scaler
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	if len(s.Min) != featureCount || len(s.Max) != featureCount {
		return nil, fmt.Errorf("scaler %s: want %d min and max values, got %d and %d",
			path, featureCount, len(s.Min), len(s.Max))
	}
	return &s, nil
}

// LoadTargetScale reads a {"target_min": x, "target_max": y} artifact.
func LoadTargetScale(path string) (*forecast.TargetScale, error) {
	var ts forecast.TargetScale
	if err := readJSON(path, &ts); err != nil {
		return nil, err
	}
	if ts.Max <= ts.Min {
		return nil, fmt.Errorf("target scale %s: target_max must exceed target_min", path)
	}
	return &ts, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
