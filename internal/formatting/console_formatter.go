package formatting

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/update"
)

// ConsoleFormatter provides simple console output formatting
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{
		options: options,
	}
}

// FormatUpdate renders a header line for the resource followed by one line
// per chunk update.
func (f *ConsoleFormatter) FormatUpdate(msg protocol.ServerMessage) (string, error) {
	s := Summarize(msg)

	var output []string
	header := fmt.Sprintf("%s [%s]", s.Resource, s.Type)
	if s.Issues > 0 && !f.options.Quiet {
		header += fmt.Sprintf(" (%d issues)", s.Issues)
	}
	output = append(output, f.paint(text.Bold, header))
	output = append(output, f.chunkLines(s.Chunks)...)
	return strings.Join(output, "\n"), nil
}

// FormatIssues renders every issue in its display form.
func (f *ConsoleFormatter) FormatIssues(list []issues.Issue) (string, error) {
	if len(list) == 0 {
		return f.paint(text.FgGreen, "No issues."), nil
	}

	output := make([]string, 0, len(list)+1)
	if !f.options.Quiet {
		output = append(output, fmt.Sprintf("Issues (%d):", len(list)))
	}
	for _, issue := range list {
		output = append(output, f.paint(severityColor(issue.Severity), issue.Format()))
	}
	return strings.Join(output, "\n\n"), nil
}

// FormatInstruction renders one line per chunk update.
func (f *ConsoleFormatter) FormatInstruction(in update.Instruction) (string, error) {
	lines := f.chunkLines(SummarizeInstruction(in))
	if len(lines) == 0 {
		return "No chunk updates.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (f *ConsoleFormatter) chunkLines(chunks []ChunkSummary) []string {
	lines := make([]string, 0, len(chunks))
	for _, cs := range chunks {
		changes := changeList(cs)
		line := fmt.Sprintf("  %s/%-20s %-8s", cs.Scope, cs.Chunk, cs.Kind)
		if len(changes) > 0 {
			line += " " + strings.Join(changes, " ")
		}
		lines = append(lines, strings.TrimRight(line, " "))
	}
	return lines
}

func (f *ConsoleFormatter) paint(color text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return color.Sprint(s)
}

// SetOptions updates the formatter options
func (f *ConsoleFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *ConsoleFormatter) GetOptions() Options {
	return f.options
}

func severityColor(severity string) text.Color {
	switch severity {
	case "bug", "fatal", "error":
		return text.FgRed
	case "warning":
		return text.FgYellow
	case "info":
		return text.FgCyan
	default:
		return text.Reset
	}
}
