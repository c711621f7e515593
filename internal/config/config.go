package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// RecordingsOff disables the CSV recorder when set as RECORDINGS_DIR.
const RecordingsOff = "off"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Simulation.
	TickInterval    time.Duration
	OceanMode       string
	Seed            uint64
	CycloneRate     float64
	CycloneMinTicks uint64
	CycloneMaxTicks uint64

	// Forecast engine and learned predictor.
	ForecastAlpha            float64
	ForecastWindow           int
	PredictorURL             string
	PredictorTimeout         time.Duration
	PredictorScalerPath      string
	PredictorTargetScalePath string

	SiteConfigPath string
	Site           *Site

	// Audit sinks. Each external sink is enabled by its address.
	RecordingsDir     string
	AuditBuffer       int
	KafkaBrokers      []string
	KafkaAuditTopic   string
	RedisAddr         string
	RedisStream       string
	RedisStreamMaxLen int64
	PostgresDSN       string

	SubscriberBuffer int
	AllowedOrigins   []string
}

// RecordingEnabled reports whether the CSV recorder should run.
func (c *Config) RecordingEnabled() bool {
	return c.RecordingsDir != "" && !strings.EqualFold(c.RecordingsDir, RecordingsOff)
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first if
// present; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8000"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		OceanMode: sharedcfg.EnvOrDefault("OCEAN_MODE", "drift"),

		PredictorURL:             os.Getenv("PREDICTOR_URL"),
		PredictorScalerPath:      os.Getenv("PREDICTOR_SCALER_PATH"),
		PredictorTargetScalePath: os.Getenv("PREDICTOR_TARGET_SCALE_PATH"),

		SiteConfigPath: os.Getenv("SITE_CONFIG"),

		RecordingsDir:   sharedcfg.EnvOrDefault("RECORDINGS_DIR", "data/recordings"),
		KafkaBrokers:    sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAuditTopic: sharedcfg.EnvOrDefault("KAFKA_AUDIT_TOPIC", "aegis-telemetry"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisStream:     sharedcfg.EnvOrDefault("REDIS_STREAM", "aegis:telemetry"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),

		AllowedOrigins: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("WS_ALLOWED_ORIGINS", "*")),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.TickInterval, err = positiveDuration("TICK_INTERVAL", "500ms")
	collect(err)
	cfg.PredictorTimeout, err = positiveDuration("PREDICTOR_TIMEOUT", "200ms")
	collect(err)

	cfg.Seed, err = parseUint("SIM_SEED", 0)
	collect(err)
	cfg.CycloneMinTicks, err = parseUint("CYCLONE_MIN_TICKS", 48)
	collect(err)
	cfg.CycloneMaxTicks, err = parseUint("CYCLONE_MAX_TICKS", 120)
	collect(err)
	if err == nil && cfg.CycloneMaxTicks < cfg.CycloneMinTicks {
		collect(errors.New("invalid CYCLONE_MAX_TICKS: must be >= CYCLONE_MIN_TICKS"))
	}

	cfg.CycloneRate, err = parseFloatRange("CYCLONE_RATE", 0.0005, 0, 1)
	collect(err)
	cfg.ForecastAlpha, err = parseFloatRange("FORECAST_ALPHA", 0.6, 0, 1)
	collect(err)

	cfg.ForecastWindow, err = parseIntMin("FORECAST_WINDOW", 24, 24)
	collect(err)
	cfg.AuditBuffer, err = parseIntMin("AUDIT_BUFFER", 256, 1)
	collect(err)
	cfg.SubscriberBuffer, err = parseIntMin("SUBSCRIBER_BUFFER", 16, 1)
	collect(err)
	maxLen, err := parseIntMin("REDIS_STREAM_MAXLEN", 10000, 1)
	collect(err)
	cfg.RedisStreamMaxLen = int64(maxLen)

	switch cfg.OceanMode {
	case "drift", "stochastic":
	default:
		collect(fmt.Errorf("invalid OCEAN_MODE %q: must be drift or stochastic", cfg.OceanMode))
	}
	if (cfg.PredictorScalerPath != "" || cfg.PredictorTargetScalePath != "") && cfg.PredictorURL == "" {
		collect(errors.New("PREDICTOR_SCALER_PATH and PREDICTOR_TARGET_SCALE_PATH require PREDICTOR_URL"))
	}
	if len(cfg.AllowedOrigins) == 0 {
		collect(errors.New("WS_ALLOWED_ORIGINS must not be empty"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	site := MumbaiSite()
	if cfg.SiteConfigPath != "" {
		site, err = LoadSite(cfg.SiteConfigPath)
		if err != nil {
			return nil, err
		}
	}
	cfg.Site = site

	return cfg, nil
}

func positiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseUint(key string, fallback uint64) (uint64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}

func parseIntMin(key string, fallback, lowest int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lowest {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, lowest)
	}
	return n, nil
}

func parseFloatRange(key string, fallback, lo, hi float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("invalid %s: must be within [%g, %g]", key, lo, hi)
	}
	return v, nil
}
