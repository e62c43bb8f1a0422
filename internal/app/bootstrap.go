package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/hotpatch/internal/config"
	"github.com/giantswarm/hotpatch/pkg/logging"
)

// Application is the bootstrapped hotpatch process.
type Application struct {
	config *Config

	// logOutput receives log records; stderr unless replaced in tests.
	logOutput io.Writer
}

// NewApplication loads the configuration and initialises logging.
//
// Configuration Loading Behavior:
//   - If cfg.HotpatchConfig is set it is used as is
//   - If cfg.ConfigPath is set config.yaml is read from that directory
//   - Otherwise config.yaml is read from ~/.config/hotpatch
//
// cfg.Override is applied last.
func NewApplication(cfg *Config) (*Application, error) {
	return newApplication(cfg, os.Stderr)
}

func newApplication(cfg *Config, logOutput io.Writer) (*Application, error) {
	if cfg.HotpatchConfig == nil {
		path := cfg.ConfigPath
		if path == "" {
			path = config.GetDefaultConfigPathOrPanic()
		}
		hotpatchCfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load hotpatch configuration from %s: %w", path, err)
		}
		cfg.HotpatchConfig = &hotpatchCfg
	}
	if cfg.Override != nil {
		cfg.Override(cfg.HotpatchConfig)
		if errs := config.Validate(*cfg.HotpatchConfig); errs.HasErrors() {
			return nil, fmt.Errorf("invalid command-line options: %w", errs)
		}
	}

	level, err := logging.ParseLevel(cfg.HotpatchConfig.Logging.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	format := logging.Format(cfg.HotpatchConfig.Logging.Format)
	if cfg.LogFormat != "" {
		format = logging.Format(cfg.LogFormat)
	}
	logging.Init(level, format, logOutput)
	logging.Debug("Bootstrap", "Logging initialised at %s level", level)

	return &Application{
		config:    cfg,
		logOutput: logOutput,
	}, nil
}

// HotpatchConfig returns the loaded configuration.
func (a *Application) HotpatchConfig() config.HotpatchConfig {
	return *a.config.HotpatchConfig
}

// RunWatch connects to the update socket and prints updates until ctx is
// cancelled or a signal arrives.
func (a *Application) RunWatch(ctx context.Context, opts WatchOptions) error {
	services, err := InitializeWatchServices(a.config, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize watch services: %w", err)
	}
	return runWatchMode(ctx, services, opts)
}

// RunServe runs the dev update server until ctx is cancelled or a signal
// arrives.
func (a *Application) RunServe(ctx context.Context) error {
	services, err := InitializeServeServices(a.config)
	if err != nil {
		return fmt.Errorf("failed to initialize serve services: %w", err)
	}
	return runServeMode(ctx, services)
}
