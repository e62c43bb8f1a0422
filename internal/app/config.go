package app

import (
	"github.com/giantswarm/hotpatch/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of config.yaml.
	Debug bool

	// Custom configuration directory (optional). Empty means
	// ~/.config/hotpatch.
	ConfigPath string

	// LogFormat overrides logging.format when set.
	LogFormat string

	// Loaded configuration. NewApplication fills it unless it is preset.
	HotpatchConfig *config.HotpatchConfig

	// Override adjusts the loaded configuration with command-line values
	// before it is validated again.
	Override func(cfg *config.HotpatchConfig)
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
