package formatting

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/update"
)

// TemplateData is the value a layout template is executed with. Event is
// "update", "issues" or "instruction"; only the matching field is set.
type TemplateData struct {
	Event       string
	Update      *UpdateSummary
	Issues      []issues.Issue
	Instruction []ChunkSummary
}

// TemplateFormatter renders values through a user-supplied text/template
// with the sprig function library.
type TemplateFormatter struct {
	options Options
	tmpl    *template.Template
}

// NewTemplateFormatter parses options.Layout.
func NewTemplateFormatter(options Options) (Formatter, error) {
	f := &TemplateFormatter{}
	if err := f.setLayout(options); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *TemplateFormatter) setLayout(options Options) error {
	if strings.TrimSpace(options.Layout) == "" {
		return errors.New("template output requires a layout")
	}
	tmpl, err := template.New("output").Funcs(sprig.TxtFuncMap()).Parse(options.Layout)
	if err != nil {
		return fmt.Errorf("parsing output template: %w", err)
	}
	f.options = options
	f.tmpl = tmpl
	return nil
}

func (f *TemplateFormatter) FormatUpdate(msg protocol.ServerMessage) (string, error) {
	s := Summarize(msg)
	return f.execute(TemplateData{Event: "update", Update: &s})
}

func (f *TemplateFormatter) FormatIssues(list []issues.Issue) (string, error) {
	return f.execute(TemplateData{Event: "issues", Issues: list})
}

func (f *TemplateFormatter) FormatInstruction(in update.Instruction) (string, error) {
	return f.execute(TemplateData{Event: "instruction", Instruction: SummarizeInstruction(in)})
}

func (f *TemplateFormatter) execute(data TemplateData) (string, error) {
	var b strings.Builder
	if err := f.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing output template: %w", err)
	}
	return b.String(), nil
}

// SetOptions updates the formatter options. An unparsable layout keeps the
// previous template.
func (f *TemplateFormatter) SetOptions(options Options) {
	if err := f.setLayout(options); err != nil {
		f.options.Quiet = options.Quiet
		f.options.Color = options.Color
	}
}

// GetOptions returns the current formatter options
func (f *TemplateFormatter) GetOptions() Options {
	return f.options
}
