package formatting

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/update"
)

// YAMLFormatter renders summaries as YAML documents.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

func (f *YAMLFormatter) FormatUpdate(msg protocol.ServerMessage) (string, error) {
	return f.marshal(Summarize(msg))
}

func (f *YAMLFormatter) FormatIssues(list []issues.Issue) (string, error) {
	if list == nil {
		list = []issues.Issue{}
	}
	return f.marshal(map[string][]issues.Issue{"issues": list})
}

func (f *YAMLFormatter) FormatInstruction(in update.Instruction) (string, error) {
	chunks := SummarizeInstruction(in)
	if chunks == nil {
		chunks = []ChunkSummary{}
	}
	return f.marshal(map[string][]ChunkSummary{"chunks": chunks})
}

// marshal emits one document, prefixed with a separator so that a stream of
// updates stays valid multi-document YAML.
func (f *YAMLFormatter) marshal(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return "---\n" + strings.TrimRight(string(data), "\n"), nil
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}
