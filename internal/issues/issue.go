// Package issues collects build diagnostics reported per resource and keeps
// a single de-duplicated list ordered by severity and category.
package issues

import (
	"fmt"
	"strings"
)

// Severity ranks, highest priority first. Severities not listed sort last.
var severityOrder = []string{"bug", "fatal", "error", "warning", "info", "log"}

// Category ranks, highest priority first. Categories not listed sort last.
var categoryOrder = []string{"parse", "resolve", "code generation", "rendering", "typescript", "other"}

// Position is a zero-based line/column location in a source file.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Source points an issue at a span of a source file.
type Source struct {
	Ident string   `json:"ident" yaml:"ident"`
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// Issue is one diagnostic reported by the build server.
type Issue struct {
	Severity          string  `json:"severity" yaml:"severity"`
	Category          string  `json:"category" yaml:"category"`
	FilePath          string  `json:"filePath" yaml:"filePath"`
	Title             string  `json:"title" yaml:"title"`
	Description       string  `json:"description,omitempty" yaml:"description,omitempty"`
	Detail            string  `json:"detail,omitempty" yaml:"detail,omitempty"`
	DocumentationLink string  `json:"documentationLink,omitempty" yaml:"documentationLink,omitempty"`
	Source            *Source `json:"source,omitempty" yaml:"source,omitempty"`
}

// Format renders the issue as the text used for display and de-duplication.
func (i Issue) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s - [%s] %s", strings.ToUpper(i.Severity), i.Category, i.FilePath)
	if i.Source != nil {
		fmt.Fprintf(&b, ":%d:%d", i.Source.Start.Line+1, i.Source.Start.Column+1)
	}
	b.WriteString("\n  ")
	b.WriteString(i.Title)

	for _, part := range []string{i.Description, i.Detail} {
		if part == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(indent(part, "  "))
	}
	if i.DocumentationLink != "" {
		b.WriteString("\n\n  Documentation: ")
		b.WriteString(i.DocumentationLink)
	}
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for n, line := range lines {
		if line != "" {
			lines[n] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func rank(order []string, v string) int {
	for n, candidate := range order {
		if candidate == v {
			return n
		}
	}
	return len(order)
}

// SeverityRank returns the sort rank of severity; lower ranks sort first.
func SeverityRank(severity string) int { return rank(severityOrder, severity) }

// CategoryRank returns the sort rank of category; lower ranks sort first.
func CategoryRank(category string) int { return rank(categoryOrder, category) }
