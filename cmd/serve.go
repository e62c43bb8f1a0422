package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/hotpatch/internal/config"
)

var (
	serveListen   string
	serveSpoolDir string
	serveKeep     bool
)

// serveCmd starts the dev update server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a development update server",
	Long: `Runs an update server speaking the hot module reload socket protocol.

Endpoints:
  /hmr      update socket (WebSocket)
  /metrics  Prometheus metrics
  /healthz  liveness probe

When a spool directory is configured, every *.json file written into it is
published to the subscribed clients. A file holds one server message or a
JSON array of messages, which is sent as one batch. Resources listed in
server.missing are answered with notFound.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := newApplication(func(cfg *config.HotpatchConfig) {
		if cmd.Flags().Changed("listen") {
			cfg.Server.Listen = serveListen
		}
		if cmd.Flags().Changed("spool-dir") {
			cfg.Server.SpoolDir = serveSpoolDir
		}
		if serveKeep {
			cfg.Server.RemoveProcessed = false
		}
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.RunServe(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", config.DefaultListen, "Address of the HTTP listener (overrides server.listen)")
	serveCmd.Flags().StringVar(&serveSpoolDir, "spool-dir", "", "Directory watched for update files (overrides server.spoolDir)")
	serveCmd.Flags().BoolVar(&serveKeep, "keep-processed", false, "Keep spool files after publishing them")
}
