package formatting

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/update"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

func (f *TableFormatter) FormatUpdate(msg protocol.ServerMessage) (string, error) {
	s := Summarize(msg)
	t := f.createTable()
	if !f.options.Quiet {
		t.SetTitle(fmt.Sprintf("%s [%s]", s.Resource, s.Type))
	}
	f.appendChunkRows(t, s.Chunks)
	return t.Render(), nil
}

func (f *TableFormatter) FormatIssues(list []issues.Issue) (string, error) {
	if len(list) == 0 {
		return f.formatEmptyMessage("✓", "No issues"), nil
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"Severity", "Category", "File", "Title"})
	for _, issue := range list {
		severity := strings.ToUpper(issue.Severity)
		if f.options.Color {
			severity = severityColor(issue.Severity).Sprint(severity)
		}
		file := issue.FilePath
		if issue.Source != nil {
			file = fmt.Sprintf("%s:%d:%d", file, issue.Source.Start.Line+1, issue.Source.Start.Column+1)
		}
		t.AppendRow(table.Row{severity, issue.Category, file, issue.Title})
	}
	if !f.options.Quiet {
		t.AppendFooter(table.Row{"", "", "Total", len(list)})
	}
	return t.Render(), nil
}

func (f *TableFormatter) FormatInstruction(in update.Instruction) (string, error) {
	chunks := SummarizeInstruction(in)
	if len(chunks) == 0 {
		return f.formatEmptyMessage("📋", "No chunk updates"), nil
	}
	t := f.createTable()
	f.appendChunkRows(t, chunks)
	return t.Render(), nil
}

func (f *TableFormatter) appendChunkRows(t table.Writer, chunks []ChunkSummary) {
	t.AppendHeader(table.Row{"Scope", "Chunk", "Kind", "Added", "Deleted"})
	for _, cs := range chunks {
		added, deleted := cs.Added, cs.Deleted
		switch update.Kind(cs.Kind) {
		case update.KindAdded:
			added = cs.Modules
		case update.KindDeleted:
			deleted = cs.Modules
		}
		t.AppendRow(table.Row{cs.Scope, cs.Chunk, cs.Kind, strings.Join(added, ", "), strings.Join(deleted, ", ")})
	}
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(icon, message string) string {
	if !f.options.Color {
		return fmt.Sprintf("%s %s", icon, message)
	}
	return fmt.Sprintf("%s %s", text.FgYellow.Sprint(icon), text.FgYellow.Sprint(message))
}
