// Package forecast produces the multi-horizon hybrid run-up forecast.
//
// Each tick the engine takes the rolling window of ocean states and asks the
// learned predictor for hourly run-up values. Any failure (no predictor,
// window still filling, timeout, error, unusable output) falls back to a
// physics projection and is reported through [Outcome] instead of an error.
// The learned or fallback series is then blended with a linear physics
// projection of the current run-up.
package forecast

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// ErrPredictorUnavailable is returned by predictors that have no model loaded.
var ErrPredictorUnavailable = errors.New("predictor unavailable")

// Predictor runs the learned sequence model on a window of ocean states and
// returns its raw per-horizon output in the model's normalized range.
type Predictor interface {
	Predict(ctx context.Context, window []domain.OceanState) ([]float64, error)
}

// Devicer is implemented by predictors that can name where inference runs.
type Devicer interface {
	Device() string
}

// Defaults.
const (
	DefaultWindow  = 24
	DefaultAlpha   = 0.6
	DefaultTimeout = 200 * time.Millisecond

	// FallbackSlope is the beach slope the physics fallback assumes.
	FallbackSlope      = 0.045
	FallbackConfidence = 0.45
	fallbackHorizons   = 6
	maxForecastRunup   = 15.0
)

// Config tunes the engine.
type Config struct {
	Window  int
	Alpha   float64
	Timeout time.Duration
	Scale   *TargetScale // nil leaves predictor output unscaled
}

func (c Config) withDefaults() Config {
	if c.Window < DefaultWindow {
		c.Window = DefaultWindow
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		c.Alpha = DefaultAlpha
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// TargetScale maps normalized model output back to metres.
type TargetScale struct {
	Min float64 `json:"target_min"`
	Max float64 `json:"target_max"`
}

// Rescale converts one normalized value.
func (s TargetScale) Rescale(v float64) float64 {
	return v*(s.Max-s.Min) + s.Min
}

// Outcome records which path produced the forecast and why.
type Outcome struct {
	Source domain.PredictionSource
	Reason domain.FallbackReason
	Err    error
}

// Engine is the hybrid forecast engine. It is owned by the tick loop and is
// not safe for concurrent use.
type Engine struct {
	cfg       Config
	predictor Predictor
	rng       domain.Rand
	logger    *slog.Logger
	window    []domain.OceanState
}

// NewEngine creates an engine. A nil predictor always uses the fallback.
func NewEngine(cfg Config, p Predictor, r domain.Rand, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		predictor: p,
		rng:       r,
		logger:    logger,
		window:    make([]domain.OceanState, 0, cfg.Window),
	}
}

// Alpha is the learned-model weight in the blend.
func (e *Engine) Alpha() float64 { return e.cfg.Alpha }

// ModelLoaded reports whether a learned predictor is configured.
func (e *Engine) ModelLoaded() bool { return e.predictor != nil }

// Device names where inference runs.
func (e *Engine) Device() string {
	if d, ok := e.predictor.(Devicer); ok {
		return d.Device()
	}
	if e.predictor != nil {
		return "remote"
	}
	return "CPU (physics)"
}

// WindowLen is the number of buffered states.
func (e *Engine) WindowLen() int { return len(e.window) }

// Observe appends s to the rolling window, evicting the oldest sample once
// the window is full.
func (e *Engine) Observe(s domain.OceanState) {
	if len(e.window) < e.cfg.Window {
		e.window = append(e.window, s)
		return
	}
	copy(e.window, e.window[1:])
	e.window[len(e.window)-1] = s
}

// Forecast returns the hybrid prediction for the current run-up. It never
// fails; predictor problems show up in the Outcome.
func (e *Engine) Forecast(ctx context.Context, runup float64) (domain.HybridPrediction, Outcome) {
	learned, out := e.learned(ctx)
	if out.Source == domain.SourcePhysicsFallback && e.logger != nil {
		e.logger.Debug("forecast fallback", "reason", out.Reason, "error", out.Err)
	}
	return Blend(learned, runup, e.cfg.Alpha), out
}

func (e *Engine) learned(ctx context.Context) (domain.LearnedPrediction, Outcome) {
	if e.predictor == nil {
		return e.fallback(domain.FallbackNoModel, nil)
	}
	if len(e.window) < e.cfg.Window {
		return e.fallback(domain.FallbackWindowFilling, nil)
	}

	raw, err := e.invoke(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return e.fallback(domain.FallbackTimeout, err)
	case errors.Is(err, ErrPredictorUnavailable):
		return e.fallback(domain.FallbackNoModel, err)
	case err != nil:
		return e.fallback(domain.FallbackError, err)
	}

	forecast, ok := e.postprocess(raw)
	if !ok {
		return e.fallback(domain.FallbackInvalidOutput, nil)
	}

	variance := populationVariance(forecast)
	confidence := max(0.3, min(0.99, 1-2*variance))
	return horizons(forecast, domain.Round(confidence, 3), domain.SourceLearned, domain.FallbackNone),
		Outcome{Source: domain.SourceLearned}
}

// invoke runs the predictor under the configured timeout. A predictor that
// ignores its context is abandoned when the deadline passes.
func (e *Engine) invoke(ctx context.Context) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	type result struct {
		out []float64
		err error
	}
	window := slices.Clone(e.window)
	done := make(chan result, 1)
	go func() {
		out, err := e.predictor.Predict(ctx, window)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) postprocess(raw []float64) ([]float64, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		if e.cfg.Scale != nil {
			v = e.cfg.Scale.Rescale(v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		out[i] = domain.Round(min(maxForecastRunup, max(0, v)), 3)
	}
	return out, true
}

// fallback projects the latest state forward with the physics model.
func (e *Engine) fallback(reason domain.FallbackReason, err error) (domain.LearnedPrediction, Outcome) {
	forecast := make([]float64, fallbackHorizons)
	if n := len(e.window); n > 0 {
		last := e.window[n-1]
		base := domain.StockdonRunup(last.WaveHeightM, last.WavePeriodS, FallbackSlope)
		if base <= 0 {
			base = 0.5
		}
		for i := range forecast {
			growth := 1 + 0.02*float64(i) + domain.Uniform(e.rng, -0.05, 0.05)
			forecast[i] = domain.Round(base*growth, 3)
		}
	} else {
		for i := range forecast {
			forecast[i] = domain.Round(domain.Uniform(e.rng, 0.5, 2.0), 3)
		}
	}

	lp := horizons(forecast, FallbackConfidence, domain.SourcePhysicsFallback, reason)
	return lp, Outcome{Source: domain.SourcePhysicsFallback, Reason: reason, Err: err}
}

func horizons(f []float64, confidence float64, src domain.PredictionSource, reason domain.FallbackReason) domain.LearnedPrediction {
	lp := domain.LearnedPrediction{
		Runup1h:        f[0],
		Runup6h:        f[len(f)-1],
		Forecast:       f,
		Confidence:     confidence,
		Source:         src,
		FallbackReason: reason,
	}
	if len(f) > 2 {
		lp.Runup3h = f[2]
	}
	return lp
}

// Blend mixes the learned series with a physics projection of runup:
// blended[i] = alpha·learned[i] + (1-alpha)·runup·(1 + 0.015·i).
// Risk is taken from the peak blended value.
func Blend(learned domain.LearnedPrediction, runup, alpha float64) domain.HybridPrediction {
	blended := make([]float64, len(learned.Forecast))
	peak := runup
	for i, v := range learned.Forecast {
		physics := runup * (1 + 0.015*float64(i))
		blended[i] = domain.Round(alpha*v+(1-alpha)*physics, 3)
		if i == 0 || blended[i] > peak {
			peak = blended[i]
		}
	}

	final := runup
	if n := len(blended); n > 0 {
		final = blended[n-1]
	}
	return domain.HybridPrediction{
		Blended:      blended,
		BlendedRunup: final,
		BlendedRisk:  domain.ClassifyForecast(peak),
		Confidence:   learned.Confidence,
		Source:       learned.Source,
		Learned:      learned,
		PhysicsRunup: runup,
		Alpha:        alpha,
	}
}

func populationVariance(v []float64) float64 {
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))

	var ss float64
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	return ss / float64(len(v))
}
