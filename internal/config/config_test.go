package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidateFailsWithoutMarket(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market.condition_id")
}

func TestDefaultsValidateWithMarket(t *testing.T) {
	cfg := Defaults()
	cfg.Market.ConditionID = "0xabc"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Ingest.PollInterval = duration{time.Second}
	cfg.Ingest.WhaleThreshold = 0
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
	assert.Contains(t, err.Error(), "whale_threshold")
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
log_level = "debug"

[market]
condition_id = "0xdeadbeef"
token_ids = ["111", "222"]

[ingest]
poll_interval = "30s"
whale_threshold = 2500.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0xdeadbeef", cfg.Market.ConditionID)
	assert.Equal(t, []string{"111", "222"}, cfg.Market.TokenIDs)
	assert.Equal(t, 30*time.Second, cfg.Ingest.PollInterval.Duration)
	assert.Equal(t, 2500.0, cfg.Ingest.WhaleThreshold)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://data-api.polymarket.com", cfg.Polymarket.DataHost)
	assert.Equal(t, 500, cfg.Ingest.PageLimit)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POLYWATCH_MARKET_CONDITION_ID", "0xenv")
	t.Setenv("POLYWATCH_INGEST_WHALE_THRESHOLD", "5000")
	t.Setenv("POLYWATCH_MARKET_TOKEN_IDS", "a, b ,c")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0xenv", cfg.Market.ConditionID)
	assert.Equal(t, 5000.0, cfg.Ingest.WhaleThreshold)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Market.TokenIDs)
}
