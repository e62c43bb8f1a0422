package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/giantswarm/hotpatch/internal/app"
	"github.com/giantswarm/hotpatch/internal/config"
	"github.com/giantswarm/hotpatch/internal/formatting"
	"github.com/giantswarm/hotpatch/internal/resource"
)

var (
	watchURL       string
	watchHeaders   map[string]string
	watchOutput    string
	watchTemplate  string
	watchNoSpinner bool
	watchQuiet     bool
)

// watchCmd subscribes to resources and prints the aggregated updates.
var watchCmd = &cobra.Command{
	Use:   "watch [RESOURCE...]",
	Short: "Subscribe to resources and print aggregated updates",
	Long: `Connects to the update socket, subscribes to the given resource paths and
prints one aggregated update per resource and batch, together with the
current issue list whenever it changes.

Resources from client.resources in config.yaml are subscribed as well. The
--header values apply to every resource given on the command line.

Examples:
  hotpatch watch app/page.js
  hotpatch watch --url ws://localhost:4000/hmr --output table app/page.js
  hotpatch watch --template '{{ .Event }} {{ len .Issues }}' app/page.js`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	format := formatting.OutputFormat(watchOutput)
	if watchTemplate != "" {
		format = formatting.FormatTemplate
	}
	if !slices.Contains(formatting.Formats, string(format)) {
		return fmt.Errorf("unsupported output format %q (valid: %v)", watchOutput, formatting.Formats)
	}
	formatter, err := formatting.NewFactory().CreateFormatter(formatting.Options{
		Format: format,
		Quiet:  watchQuiet,
		Color:  isTerminal(os.Stdout),
		Layout: watchTemplate,
	})
	if err != nil {
		return err
	}

	application, err := newApplication(func(cfg *config.HotpatchConfig) {
		if cmd.Flags().Changed("url") {
			cfg.Client.URL = watchURL
		}
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.RunWatch(ctx, app.WatchOptions{
		Resources: resourcesFromArgs(args, watchHeaders),
		Formatter: formatter,
		Output:    cmd.OutOrStdout(),
		Spinner:   !watchNoSpinner && !watchQuiet && isTerminal(os.Stderr),
	})
}

func resourcesFromArgs(paths []string, headers map[string]string) []resource.Resource {
	out := make([]resource.Resource, 0, len(paths))
	for _, p := range paths {
		r := resource.Resource{Path: p}
		if len(headers) > 0 {
			r.Headers = make(map[string]string, len(headers))
			for k, v := range headers {
				r.Headers[k] = v
			}
		}
		out = append(out, r)
	}
	return out
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchURL, "url", config.DefaultClientURL, "Update socket address (overrides client.url)")
	watchCmd.Flags().StringToStringVar(&watchHeaders, "header", nil, "Resource header as key=value, repeatable")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", string(formatting.FormatConsole), fmt.Sprintf("Output format %v", formatting.Formats))
	watchCmd.Flags().StringVar(&watchTemplate, "template", "", "Go template rendered for every event (implies --output template)")
	watchCmd.Flags().BoolVar(&watchNoSpinner, "no-spinner", false, "Disable the connection spinner")
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false, "Suppress decorative output")
}
