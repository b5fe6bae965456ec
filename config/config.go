// Package config centralises runtime configuration for the catalog pipeline.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gamedex/catalog/errs"
)

// HTTPSettings tunes the rate-limited client shared by every adapter.
type HTTPSettings struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"maxRetries"`
	BackoffBase     time.Duration `yaml:"backoffBase"`
	BackoffCap      time.Duration `yaml:"backoffCap"`
	RequestsPerSec  float64       `yaml:"requestsPerSec"`
	Burst           int           `yaml:"burst"`
	BreakerTrip     int           `yaml:"breakerTrip"`
	BreakerCooldown time.Duration `yaml:"breakerCooldown"`
	UserAgent       string        `yaml:"userAgent"`
}

// IngestSettings bounds orchestrator concurrency and scoping.
type IngestSettings struct {
	Workers  int           `yaml:"workers"`
	Deadline time.Duration `yaml:"deadline"`
	Country  string        `yaml:"country"`
	Locale   string        `yaml:"locale"`
}

// DedupeSettings carries the fuzzy-match tuning constants. The similarity
// cutoff and year tolerance are empirical knobs, not derived values.
type DedupeSettings struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	YearTolerance       int     `yaml:"yearTolerance"`
}

// StoreSettings overrides per-store endpoints and rate limits.
type StoreSettings struct {
	BaseURL        string  `yaml:"baseURL"`
	RequestsPerSec float64 `yaml:"requestsPerSec"`
}

// TelemetrySettings configures metric export.
type TelemetrySettings struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Settings contains the full configuration tree loaded from defaults,
// an optional YAML file, and environment overrides, in that order.
type Settings struct {
	OutputDir   string                   `yaml:"outputDir"`
	DatabaseDSN string                   `yaml:"databaseDSN"`
	HTTP        HTTPSettings             `yaml:"http"`
	Ingest      IngestSettings           `yaml:"ingest"`
	Dedupe      DedupeSettings           `yaml:"dedupe"`
	Stores      map[string]StoreSettings `yaml:"stores"`
	Telemetry   TelemetrySettings        `yaml:"telemetry"`
	Log         LogSettings              `yaml:"log"`
}

// Default returns the default pipeline configuration.
func Default() Settings {
	return Settings{
		OutputDir:   "out",
		DatabaseDSN: "",
		HTTP: HTTPSettings{
			Timeout:         30 * time.Second,
			MaxRetries:      5,
			BackoffBase:     500 * time.Millisecond,
			BackoffCap:      8 * time.Second,
			RequestsPerSec:  2.5,
			Burst:           1,
			BreakerTrip:     5,
			BreakerCooldown: 30 * time.Second,
			UserAgent:       "gamedex-catalog (contact: maintainer@example.com)",
		},
		Ingest: IngestSettings{
			Workers:  4,
			Deadline: 45 * time.Minute,
			Country:  "US",
			Locale:   "en-US",
		},
		Dedupe: DedupeSettings{
			SimilarityThreshold: 0.6,
			YearTolerance:       1,
		},
		Stores:    map[string]StoreSettings{},
		Telemetry: TelemetrySettings{OTLPEndpoint: "", ServiceName: "gamedex-catalog"},
		Log:       LogSettings{Level: "info", Pretty: false},
	}
}

// Load reads settings from path (when non-empty) on top of defaults, then
// applies environment overrides and validates the result.
func Load(path string) (Settings, error) {
	settings := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return Settings{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	settings.applyEnv(os.Getenv)
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s *Settings) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("CATALOG_OUTPUT_DIR")); v != "" {
		s.OutputDir = v
	}
	if v := strings.TrimSpace(getenv("CATALOG_DATABASE_DSN")); v != "" {
		s.DatabaseDSN = v
	}
	if v := strings.TrimSpace(getenv("CATALOG_COUNTRY")); v != "" {
		s.Ingest.Country = v
	}
	if v := strings.TrimSpace(getenv("CATALOG_LOCALE")); v != "" {
		s.Ingest.Locale = v
	}
	if v := strings.TrimSpace(getenv("CATALOG_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.Ingest.Workers = n
		}
	}
	if v := strings.TrimSpace(getenv("CATALOG_OTLP_ENDPOINT")); v != "" {
		s.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(getenv("CATALOG_LOG_LEVEL")); v != "" {
		s.Log.Level = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.OutputDir) == "" {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("outputDir required"))
	}
	if s.HTTP.MaxRetries < 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("http.maxRetries must be >= 0"))
	}
	if s.HTTP.BackoffBase <= 0 || s.HTTP.BackoffCap < s.HTTP.BackoffBase {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("http backoff base/cap invalid"))
	}
	if s.HTTP.RequestsPerSec <= 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("http.requestsPerSec must be > 0"))
	}
	if s.HTTP.BreakerTrip <= 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("http.breakerTrip must be > 0"))
	}
	if s.Ingest.Workers <= 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("ingest.workers must be > 0"))
	}
	if s.Dedupe.SimilarityThreshold <= 0 || s.Dedupe.SimilarityThreshold > 1 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("dedupe.similarityThreshold must be in (0,1]"))
	}
	if s.Dedupe.YearTolerance < 0 {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("dedupe.yearTolerance must be >= 0"))
	}
	return nil
}

// StoreRate returns the effective requests-per-second limit for a store,
// falling back to the global HTTP default.
func (s Settings) StoreRate(store string) float64 {
	if cfg, ok := s.Stores[store]; ok && cfg.RequestsPerSec > 0 {
		return cfg.RequestsPerSec
	}
	return s.HTTP.RequestsPerSec
}

// StoreBaseURL returns the endpoint override for a store, or empty when the
// adapter's built-in default applies.
func (s Settings) StoreBaseURL(store string) string {
	if cfg, ok := s.Stores[store]; ok {
		return strings.TrimSpace(cfg.BaseURL)
	}
	return ""
}
