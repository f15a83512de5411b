package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-catmat-matcher/internal/model"
)

var managedVars = []string{
	"MATCHER_ADDR", "MATCHER_DB_PATH", "MATCHER_LOG_FILE", "MATCHER_LOG_LEVEL",
	"MATCHER_CATALOG_FILE", "MATCHER_CATALOG_VERSION", "MATCHER_CATALOG_CACHE_SIZE",
	"MATCHER_HIGH_THRESHOLD", "MATCHER_LOW_THRESHOLD", "MATCHER_WORKERS",
	"MATCHER_MAX_CANDIDATES", "MATCHER_MATCH_TIMEOUT", "MATCHER_RETRY_MAX_ATTEMPTS",
	"MATCHER_RETRY_INITIAL_DELAY", "MATCHER_RETRY_MAX_DELAY", "MATCHER_RETRY_BACKOFF",
	"MATCHER_UPLOAD_MAX_BYTES", "MATCHER_UPLOAD_MAX_ROWS", "MATCHER_OUTPUT_DIR",
	"NATS_URL", "NATS_SUBJECT_PREFIX",
}

func clearEnv(t *testing.T) {
	for _, k := range managedVars {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "matcher.db", cfg.DBPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "v1", cfg.CatalogVersion)
	assert.Equal(t, model.DefaultThresholds, cfg.Thresholds)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.MatchTimeout)
	assert.Equal(t, model.DefaultRetryConfig, cfg.Retry)
	assert.EqualValues(t, 10<<20, cfg.UploadMaxBytes)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "catmat.jobs", cfg.NATSSubjectPrefix)

	d := cfg.Defaults()
	assert.Equal(t, cfg.Workers, d.Workers)
	assert.Equal(t, cfg.Retry, d.Retry)
	assert.Equal(t, 50000, cfg.IngestLimits().MaxRows)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATCHER_HIGH_THRESHOLD", "0,9")
	t.Setenv("MATCHER_LOW_THRESHOLD", "0.5")
	t.Setenv("MATCHER_WORKERS", "8")
	t.Setenv("MATCHER_LOG_LEVEL", "debug")
	t.Setenv("MATCHER_RETRY_INITIAL_DELAY", "1s")
	t.Setenv("NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, model.Thresholds{High: 0.9, Low: 0.5}, cfg.Thresholds)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := map[string]string{
		"MATCHER_WORKERS":        "zero",
		"MATCHER_MAX_CANDIDATES": "-1",
		"MATCHER_MATCH_TIMEOUT":  "soon",
		"MATCHER_LOG_LEVEL":      "loud",
		"MATCHER_LOW_THRESHOLD":  "0.95",
		"MATCHER_RETRY_BACKOFF":  "0.5",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("job created", slog.String("job_id", "j1"))

	assert.Contains(t, stderr.String(), "job created")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "j1", entry["job_id"])
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matcher.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
