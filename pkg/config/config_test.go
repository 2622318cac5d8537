package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "data_cache", cfg.CacheDir)
	assert.True(t, cfg.UseCache)
	assert.Equal(t, 5.0, cfg.Provider.RequestsPerSec)
	assert.False(t, cfg.DeepSeek.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("USE_CACHE", "false")
	t.Setenv("PROVIDER_RPS", "2.5")
	t.Setenv("OUTPUT_DIR", "/tmp/reports")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.UseCache)
	assert.Equal(t, 2.5, cfg.Provider.RequestsPerSec)
	assert.Equal(t, "/tmp/reports", cfg.OutputDir)
}

func TestLoad_RejectsUnknownEnv(t *testing.T) {
	t.Setenv("ENV", "qa")

	_, err := Load()
	assert.ErrorContains(t, err, "ENV must be one of")
}

func TestLoad_DeepSeekNeedsKey(t *testing.T) {
	t.Setenv("DEEPSEEK_ENABLED", "true")
	t.Setenv("DEEPSEEK_API_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DEEPSEEK_API_KEY")
}

func TestLoad_RejectsNonPositiveRPS(t *testing.T) {
	t.Setenv("PROVIDER_RPS", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "PROVIDER_RPS")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SOME_BOOL", "not-a-bool")
	assert.True(t, getEnvAsBool("SOME_BOOL", true), "unparseable bool keeps the default")

	t.Setenv("SOME_FLOAT", "abc")
	assert.Equal(t, 1.5, getEnvAsFloat("SOME_FLOAT", 1.5), "unparseable float keeps the default")
}
