// Package config persists user-level tool defaults: values that apply to
// every flow on this machine unless overridden by a flag, as opposed to
// the per-repository descriptor handled by internal/descriptor.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/cargorun/cargorun/internal/fs"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment overrides of these defaults,
// e.g. CARGO_MAKE_LOG_LEVEL overrides LogLevel.
const EnvPrefix = "cargo_make"

// ToolConfig is the on-disk user configuration. Precedence, lowest to
// highest: file values, CARGO_MAKE_* environment overrides, CLI flags
// (applied by the caller).
type ToolConfig struct {
	// Profile is the default profile when --profile is not given.
	Profile string `json:"profile,omitempty" envconfig:"profile"`
	// LogLevel is the default log level ("trace".."error").
	LogLevel string `json:"logLevel,omitempty" envconfig:"log_level"`
	// NoColor disables colored output.
	NoColor bool `json:"noColor,omitempty" envconfig:"no_color"`
	// CacheDir overrides the XDG default output-cache directory.
	CacheDir string `json:"cacheDir,omitempty" envconfig:"cache_dir"`
	// DisableUpdateCheck suppresses the update-check statefile handshake.
	DisableUpdateCheck bool `json:"disableUpdateCheck,omitempty" envconfig:"disable_update_check"`
}

func defaultToolConfig() *ToolConfig {
	return &ToolConfig{
		LogLevel: "info",
	}
}

// UserConfigPath returns the config file location under the XDG config
// home for toolName.
func UserConfigPath(toolName string) (string, error) {
	return xdg.ConfigFile(filepath.Join(toolName, "config.json"))
}

// ReadToolConfigFile loads path, fills unset fields with defaults, then
// applies CARGO_MAKE_* environment overrides. A missing file is not an
// error; the defaults-plus-env result is returned.
func ReadToolConfigFile(path string) (*ToolConfig, error) {
	cfg := defaultToolConfig()

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(b, cfg); jsonErr != nil {
			return nil, jsonErr
		}
	case os.IsNotExist(err):
		// first run, nothing persisted yet
	default:
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteToolConfigFile persists config to path as JSON.
func WriteToolConfigFile(path string, config *ToolConfig) error {
	b, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	if err := fs.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
