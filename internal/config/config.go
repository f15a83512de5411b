package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/internal/pipeline"
	"go-catmat-matcher/pkg/utils"
)

// Config holds the process settings read from the environment
type Config struct {
	Addr     string
	DBPath   string
	LogFile  string
	LogLevel slog.Level

	CatalogFile      string
	CatalogVersion   string
	CatalogCacheSize int

	Thresholds    model.Thresholds
	Workers       int
	MaxCandidates int
	MatchTimeout  time.Duration
	Retry         model.RetryConfig

	UploadMaxBytes int64
	UploadMaxRows  int
	OutputDir      string

	NATSURL           string // empty disables publishing
	NATSSubjectPrefix string
}

// Load reads the configuration. Unset variables fall back to defaults;
// malformed values are errors.
func Load() (Config, error) {
	cfg := Config{
		Addr:              getenv("MATCHER_ADDR", ":8080"),
		DBPath:            getenv("MATCHER_DB_PATH", "matcher.db"),
		LogFile:           getenv("MATCHER_LOG_FILE", "matcher.log"),
		CatalogFile:       getenv("MATCHER_CATALOG_FILE", ""),
		CatalogVersion:    getenv("MATCHER_CATALOG_VERSION", "v1"),
		OutputDir:         getenv("MATCHER_OUTPUT_DIR", "outputs"),
		NATSURL:           getenv("NATS_URL", ""),
		NATSSubjectPrefix: getenv("NATS_SUBJECT_PREFIX", "catmat.jobs"),
	}

	var err error
	if cfg.LogLevel, err = ParseLevel(getenv("MATCHER_LOG_LEVEL", "INFO")); err != nil {
		return Config{}, err
	}
	if cfg.CatalogCacheSize, err = parsePositiveInt(getenv("MATCHER_CATALOG_CACHE_SIZE", "10000"), "MATCHER_CATALOG_CACHE_SIZE"); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = parsePositiveInt(getenv("MATCHER_WORKERS", "4"), "MATCHER_WORKERS"); err != nil {
		return Config{}, err
	}
	if cfg.MaxCandidates, err = parsePositiveInt(getenv("MATCHER_MAX_CANDIDATES", "5"), "MATCHER_MAX_CANDIDATES"); err != nil {
		return Config{}, err
	}
	if cfg.UploadMaxRows, err = parsePositiveInt(getenv("MATCHER_UPLOAD_MAX_ROWS", "50000"), "MATCHER_UPLOAD_MAX_ROWS"); err != nil {
		return Config{}, err
	}
	maxBytes, err := parsePositiveInt(getenv("MATCHER_UPLOAD_MAX_BYTES", "10485760"), "MATCHER_UPLOAD_MAX_BYTES")
	if err != nil {
		return Config{}, err
	}
	cfg.UploadMaxBytes = int64(maxBytes)

	if cfg.MatchTimeout, err = parseDuration(getenv("MATCHER_MATCH_TIMEOUT", "10s"), "MATCHER_MATCH_TIMEOUT"); err != nil {
		return Config{}, err
	}

	if cfg.Thresholds.High, err = parseDecimal(getenv("MATCHER_HIGH_THRESHOLD", "0.85"), "MATCHER_HIGH_THRESHOLD"); err != nil {
		return Config{}, err
	}
	if cfg.Thresholds.Low, err = parseDecimal(getenv("MATCHER_LOW_THRESHOLD", "0.60"), "MATCHER_LOW_THRESHOLD"); err != nil {
		return Config{}, err
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.Retry.MaxAttempts, err = parsePositiveInt(getenv("MATCHER_RETRY_MAX_ATTEMPTS", "3"), "MATCHER_RETRY_MAX_ATTEMPTS"); err != nil {
		return Config{}, err
	}
	if cfg.Retry.InitialDelay, err = parseDuration(getenv("MATCHER_RETRY_INITIAL_DELAY", "200ms"), "MATCHER_RETRY_INITIAL_DELAY"); err != nil {
		return Config{}, err
	}
	if cfg.Retry.MaxDelay, err = parseDuration(getenv("MATCHER_RETRY_MAX_DELAY", "5s"), "MATCHER_RETRY_MAX_DELAY"); err != nil {
		return Config{}, err
	}
	if cfg.Retry.BackoffMultiplier, err = parseDecimal(getenv("MATCHER_RETRY_BACKOFF", "2.0"), "MATCHER_RETRY_BACKOFF"); err != nil {
		return Config{}, err
	}
	if cfg.Retry.BackoffMultiplier < 1 {
		return Config{}, fmt.Errorf("invalid MATCHER_RETRY_BACKOFF: must be at least 1")
	}
	return cfg, nil
}

// Defaults maps the settings onto controller defaults
func (c Config) Defaults() pipeline.Defaults {
	return pipeline.Defaults{
		Workers:       c.Workers,
		MaxCandidates: c.MaxCandidates,
		MatchTimeout:  c.MatchTimeout,
		Retry:         c.Retry,
		Thresholds:    c.Thresholds,
	}
}

func (c Config) IngestLimits() pipeline.IngestLimits {
	return pipeline.IngestLimits{MaxBytes: c.UploadMaxBytes, MaxRows: c.UploadMaxRows}
}

// ParseLevel accepts DEBUG, INFO, WARN and ERROR in any case
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid MATCHER_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return v, nil
}

func parseDuration(value string, name string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", name)
	}
	return d, nil
}

func parseDecimal(value string, name string) (float64, error) {
	f, err := utils.ParseDecimal(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return f, nil
}
