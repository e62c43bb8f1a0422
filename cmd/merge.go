package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/hotpatch/internal/formatting"
	"github.com/giantswarm/hotpatch/internal/update"
)

var mergeOutput string

// mergeCmd folds a recorded instruction sequence offline.
var mergeCmd = &cobra.Command{
	Use:   "merge FILE",
	Short: "Merge a sequence of update instructions",
	Long: `Reads a JSON array of update instructions from FILE ("-" for stdin) and
prints the single instruction they merge into, exactly as the reconciler
would deliver it.

An inconsistent sequence (a module added twice, or deleted twice) exits
with code 3.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	var instructions []update.Instruction
	if err := json.Unmarshal(data, &instructions); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	merged, err := update.MergeAll(instructions...)
	if err != nil {
		return err
	}

	formatter, err := formatting.NewFactory().CreateFormatter(formatting.Options{
		Format: formatting.OutputFormat(mergeOutput),
	})
	if err != nil {
		return err
	}
	out, err := formatter.FormatInstruction(merged)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", string(formatting.FormatJSON), "Output format: json, yaml, table or console")
}
