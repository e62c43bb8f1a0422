package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// newVersionCmd reports the build version, Go toolchain and platform.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the hotpatch build version",
		Long: `Prints the hotpatch release this binary was built from, followed by the
Go version and target platform. Release builds stamp the version with
-ldflags; local builds report "dev".`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hotpatch version %s\n", rootCmd.Version)
			fmt.Fprintf(out, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
