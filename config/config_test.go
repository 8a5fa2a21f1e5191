package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv(ConfigPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "options-engine", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 10*time.Second, cfg.API.ReadTimeout)
	assert.Equal(t, 100, cfg.Pricing.TreeSteps)
	assert.Equal(t, 10000, cfg.Pricing.Simulations)
	assert.Equal(t, 0.95, cfg.Risk.VaRConfidenceLevel)
	assert.Equal(t, "yahoo", cfg.MarketData.Source)
	assert.Equal(t, 30*time.Second, cfg.MarketData.Breaker.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.MarketData.CacheTTL)
	assert.Equal(t, "block", cfg.Pricing.Overload)
	assert.Zero(t, cfg.Pricing.MaxConcurrent)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "options.pricing.requests", cfg.Kafka.Topics.PricingRequests)
	assert.True(t, cfg.Metrics.Prometheus.Enabled)
	assert.Empty(t, cfg.App.Logger().File)
	assert.Equal(t, 100, cfg.App.Logger().MaxSizeMB)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: production
  log_level: debug
pricing:
  tree_steps: 250
  seed: 42
market_data:
  source: csv
  csv_path: /data/prices.csv
kafka:
  topics:
    pricing_results: results
`)
	t.Setenv(ConfigPathEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 250, cfg.Pricing.TreeSteps)
	assert.Equal(t, uint64(42), cfg.Pricing.Seed)
	assert.Equal(t, "csv", cfg.MarketData.Source)
	assert.Equal(t, "/data/prices.csv", cfg.MarketData.CSVPath)
	assert.Equal(t, "results", cfg.Kafka.Topics.PricingResults)
	assert.Equal(t, "options.pricing.requests", cfg.Kafka.Topics.PricingRequests)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "api:\n  port: 9000\n")
	t.Setenv(ConfigPathEnv, path)
	t.Setenv("OPTIONS_API_PORT", "9100")
	t.Setenv("OPTIONS_PRICING_SIMULATIONS", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.API.Port)
	assert.Equal(t, 500, cfg.Pricing.Simulations)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"confidence out of range", "risk:\n  var_confidence_level: 1.5\n"},
		{"bad port", "api:\n  port: 70000\n"},
		{"unknown source", "market_data:\n  source: bloomberg\n"},
		{"csv without path", "market_data:\n  source: csv\n"},
		{"unknown overload strategy", "pricing:\n  overload: drop\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(ConfigPathEnv, writeConfig(t, tc.body))
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	t.Setenv(ConfigPathEnv, writeConfig(t, "api: [unterminated\n"))
	_, err := Load()
	assert.Error(t, err)
}
