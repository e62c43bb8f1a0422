package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/hotpatch/internal/config"
	"github.com/giantswarm/hotpatch/internal/update"
)

func TestSetVersion(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "hotpatch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)

	for _, name := range []string{"config-path", "debug", "log-format"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "hotpatch version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	require.NoError(t, testCmd.Execute())

	assert.Equal(t, "hotpatch version 1.0.0\n", buf.String())
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}

	for _, expected := range []string{"version", "serve", "watch", "merge"} {
		assert.True(t, found[expected], "expected subcommand %q", expected)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "generic error",
			err:  errors.New("boom"),
			want: ExitCodeError,
		},
		{
			name: "configuration error",
			err:  fmt.Errorf("loading: %w", config.NewConfigurationError("/tmp/config.yaml", "parse", "bad yaml")),
			want: ExitCodeConfig,
		},
		{
			name: "invariant error",
			err:  fmt.Errorf("merging: %w", &update.InvariantError{Chunk: "c", First: update.KindAdded, Next: update.KindAdded}),
			want: ExitCodeInvariant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestResourcesFromArgs(t *testing.T) {
	headers := map[string]string{"rsc": "1"}
	got := resourcesFromArgs([]string{"a.js", "b.js"}, headers)

	require.Len(t, got, 2)
	assert.Equal(t, "a.js", got[0].Path)
	assert.Equal(t, headers, got[1].Headers)

	got[0].Headers["rsc"] = "2"
	assert.Equal(t, "1", got[1].Headers["rsc"], "header maps must not be shared")

	plain := resourcesFromArgs([]string{"a.js"}, nil)
	assert.Nil(t, plain[0].Headers)
}

func TestWatchFlags(t *testing.T) {
	for _, name := range []string{"url", "header", "output", "template", "no-spinner", "quiet"} {
		assert.NotNil(t, watchCmd.Flags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, config.DefaultClientURL, watchCmd.Flags().Lookup("url").DefValue)
}

func TestIsTerminal_RegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, isTerminal(f))
}
