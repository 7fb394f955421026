package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadToolConfigFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := ReadToolConfigFile(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Profile)
}

func TestToolConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, WriteToolConfigFile(path, &ToolConfig{Profile: "release", LogLevel: "debug", NoColor: true}))

	cfg, err := ReadToolConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Profile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.NoColor)
}

func TestEnvOverridesFileValues(t *testing.T) {
	t.Setenv("CARGO_MAKE_LOG_LEVEL", "trace")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, WriteToolConfigFile(path, &ToolConfig{LogLevel: "warn"}))

	cfg, err := ReadToolConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)
}
