package formatting

import (
	"encoding/json"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/update"
)

// JSONFormatter renders values in their wire JSON form.
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatUpdate renders msg as the server sent it. Quiet output is compact,
// one document per line.
func (f *JSONFormatter) FormatUpdate(msg protocol.ServerMessage) (string, error) {
	return f.marshal(msg)
}

func (f *JSONFormatter) FormatIssues(list []issues.Issue) (string, error) {
	if list == nil {
		list = []issues.Issue{}
	}
	return f.marshal(list)
}

func (f *JSONFormatter) FormatInstruction(in update.Instruction) (string, error) {
	return f.marshal(in)
}

func (f *JSONFormatter) marshal(v interface{}) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.options.Quiet {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}
