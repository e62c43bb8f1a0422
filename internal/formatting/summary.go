package formatting

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/update"
)

const (
	ScopeChunks = "chunks"
	ScopeMerged = "merged"
)

// ChunkSummary is the flattened view of one chunk update.
type ChunkSummary struct {
	Scope   string   `json:"scope" yaml:"scope"`
	Chunk   string   `json:"chunk" yaml:"chunk"`
	Kind    string   `json:"kind" yaml:"kind"`
	Modules []string `json:"modules,omitempty" yaml:"modules,omitempty"`
	Added   []string `json:"added,omitempty" yaml:"added,omitempty"`
	Deleted []string `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// UpdateSummary is the flattened view of a delivered update.
type UpdateSummary struct {
	Resource string            `json:"resource" yaml:"resource"`
	Path     string            `json:"path" yaml:"path"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Type     string            `json:"type" yaml:"type"`
	Chunks   []ChunkSummary    `json:"chunks,omitempty" yaml:"chunks,omitempty"`
	Entries  []string          `json:"entries,omitempty" yaml:"entries,omitempty"`
	Issues   int               `json:"issues" yaml:"issues"`
}

// Summarize flattens msg for display.
func Summarize(msg protocol.ServerMessage) UpdateSummary {
	s := UpdateSummary{
		Resource: msg.Resource.String(),
		Path:     msg.Resource.Path,
		Headers:  msg.Resource.Headers,
		Type:     string(msg.Type),
		Issues:   len(msg.Issues),
	}
	if msg.Instruction != nil {
		s.Chunks = SummarizeInstruction(*msg.Instruction)
		s.Entries = entryIDs(*msg.Instruction)
	}
	return s
}

// SummarizeInstruction lists the chunk updates of in, top-level chunks first,
// each scope ordered by chunk id.
func SummarizeInstruction(in update.Instruction) []ChunkSummary {
	var out []ChunkSummary
	out = appendChunks(out, ScopeChunks, in.Chunks)
	if in.Merged != nil {
		out = appendChunks(out, ScopeMerged, in.Merged.Chunks)
	}
	return out
}

func appendChunks(out []ChunkSummary, scope string, chunks update.ChunkUpdates) []ChunkSummary {
	ids := make([]string, 0, len(chunks))
	for id := range chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		u := chunks[id]
		cs := ChunkSummary{Scope: scope, Chunk: id, Kind: string(u.Kind)}
		switch u.Kind {
		case update.KindPartial:
			cs.Added = u.AddedIDs()
			cs.Deleted = u.DeletedIDs()
		default:
			cs.Modules = u.ModuleIDs()
		}
		out = append(out, cs)
	}
	return out
}

func entryIDs(in update.Instruction) []string {
	if in.Merged == nil || len(in.Merged.Entries) == 0 {
		return nil
	}
	ids := make([]string, 0, len(in.Merged.Entries))
	for id := range in.Merged.Entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// changeList renders the module changes of cs as "+a +b -c".
func changeList(cs ChunkSummary) []string {
	var out []string
	switch update.Kind(cs.Kind) {
	case update.KindAdded:
		for _, m := range cs.Modules {
			out = append(out, "+"+m)
		}
	case update.KindDeleted:
		for _, m := range cs.Modules {
			out = append(out, "-"+m)
		}
	default:
		for _, m := range cs.Added {
			out = append(out, "+"+m)
		}
		for _, m := range cs.Deleted {
			out = append(out, "-"+m)
		}
	}
	return out
}

// PrettyJSON formats any value as indented JSON for human-readable display.
// It falls back to fmt's %v formatting when marshaling fails.
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
