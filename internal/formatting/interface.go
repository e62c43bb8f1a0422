// Package formatting renders delivered updates, issue lists and merged
// instructions for the CLI in several output formats (console, JSON, YAML,
// table and user-supplied templates).
package formatting

import (
	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/update"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatConsole  OutputFormat = "console"  // Simple console output
	FormatJSON     OutputFormat = "json"     // JSON output
	FormatYAML     OutputFormat = "yaml"     // YAML output
	FormatTable    OutputFormat = "table"    // Rich table output
	FormatTemplate OutputFormat = "template" // text/template with sprig functions
)

// Formats lists the accepted --output values.
var Formats = []string{
	string(FormatConsole), string(FormatJSON), string(FormatYAML), string(FormatTable), string(FormatTemplate),
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool   // Suppress decorative elements
	Color  bool   // Enable colored output
	Layout string // Template source, used with FormatTemplate
}

// Formatter renders the values printed by the CLI.
type Formatter interface {
	// FormatUpdate renders one delivered update.
	FormatUpdate(msg protocol.ServerMessage) (string, error)

	// FormatIssues renders the current de-duplicated issue list.
	FormatIssues(list []issues.Issue) (string, error)

	// FormatInstruction renders a merged instruction.
	FormatInstruction(in update.Instruction) (string, error)

	SetOptions(options Options)
	GetOptions() Options
}

// Factory creates formatters for different output formats
type Factory interface {
	CreateFormatter(options Options) (Formatter, error)
}

// NewFactory creates a new formatter factory
func NewFactory() Factory {
	return &factory{}
}

type factory struct{}

// CreateFormatter creates the appropriate formatter based on options. Only
// the template formatter can fail, on an unparsable layout.
func (f *factory) CreateFormatter(options Options) (Formatter, error) {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options), nil
	case FormatYAML:
		return NewYAMLFormatter(options), nil
	case FormatTable:
		return NewTableFormatter(options), nil
	case FormatTemplate:
		return NewTemplateFormatter(options)
	case FormatConsole:
		fallthrough
	default:
		return NewConsoleFormatter(options), nil
	}
}
