package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/hotpatch/internal/app"
	"github.com/giantswarm/hotpatch/internal/config"
	"github.com/giantswarm/hotpatch/internal/update"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates an unreadable or invalid configuration file.
	ExitCodeConfig = 2
	// ExitCodeInvariant indicates an update sequence that cannot be merged.
	ExitCodeInvariant = 3
)

// Global flags shared by every command.
var (
	configPath string
	debug      bool
	logFormat  string
)

// rootCmd represents the base command for the hotpatch application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hotpatch",
	Short: "Subscribe to hot module reload update streams",
	Long: `hotpatch connects to the update socket of a development build server,
subscribes to resources and aggregates the incremental updates it receives
into one consistent update per resource and batch. Build diagnostics are
collected into a single de-duplicated, priority-ordered issue list.

It also ships a small update server ('hotpatch serve') that replays update
files, and an offline merge tool ('hotpatch merge').`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "hotpatch version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var cfgErr config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return ExitCodeConfig
	}

	var invariant *update.InvariantError
	if errors.As(err, &invariant) {
		return ExitCodeInvariant
	}

	return ExitCodeError
}

// newApplication bootstraps the application from the global flags.
// override applies command specific flags to the loaded configuration.
func newApplication(override func(*config.HotpatchConfig)) (*app.Application, error) {
	cfg := app.NewConfig(debug, configPath)
	cfg.LogFormat = logFormat
	cfg.Override = override
	return app.NewApplication(cfg)
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default is $HOME/.config/hotpatch)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides logging.format)")
}
