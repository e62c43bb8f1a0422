package update

import (
	"encoding/json"
	"fmt"
)

// Wire encoding. Module sets travel as sorted string arrays; optional fields
// are omitted when absent and kept (possibly empty) when present.

type moduleUpdateJSON struct {
	Type    Kind     `json:"type"`
	Modules []string `json:"modules,omitempty"`
	Added   []string `json:"added,omitempty"`
	Deleted []string `json:"deleted,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (u ModuleUpdate) MarshalJSON() ([]byte, error) {
	switch u.Kind {
	case KindPartial:
		return json.Marshal(struct {
			Type    Kind     `json:"type"`
			Added   []string `json:"added"`
			Deleted []string `json:"deleted"`
		}{u.Kind, u.AddedIDs(), u.DeletedIDs()})
	case KindAdded, KindDeleted:
		return json.Marshal(struct {
			Type    Kind     `json:"type"`
			Modules []string `json:"modules"`
		}{u.Kind, u.ModuleIDs()})
	default:
		return nil, fmt.Errorf("unknown module update type %q", u.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *ModuleUpdate) UnmarshalJSON(data []byte) error {
	var raw moduleUpdateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case KindAdded, KindDeleted:
		*u = ModuleUpdate{Kind: raw.Type, Modules: NewModuleSet(raw.Modules...)}
	case KindPartial:
		*u = ModuleUpdate{Kind: raw.Type, Added: NewModuleSet(raw.Added...), Deleted: NewModuleSet(raw.Deleted...)}
	default:
		return fmt.Errorf("unknown module update type %q", raw.Type)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m MergedUpdate) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2)
	if m.Entries != nil {
		out["entries"] = m.Entries
	}
	if m.Chunks != nil {
		out["chunks"] = m.Chunks
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *MergedUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Entries map[string]json.RawMessage `json:"entries"`
		Chunks  ChunkUpdates               `json:"chunks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Entries = raw.Entries
	m.Chunks = raw.Chunks
	return nil
}

// MarshalJSON implements json.Marshaler. The merged update is written as a
// single-element list.
func (i Instruction) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2)
	if i.Chunks != nil {
		out["chunks"] = i.Chunks
	}
	if i.Merged != nil {
		out["merged"] = []MergedUpdate{*i.Merged}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. A merged list with several
// elements is folded into one with MergeMergedUpdates.
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Chunks ChunkUpdates   `json:"chunks"`
		Merged []MergedUpdate `json:"merged"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	i.Chunks = raw.Chunks
	i.Merged = nil
	if len(raw.Merged) == 0 {
		return nil
	}

	acc := raw.Merged[0]
	for _, next := range raw.Merged[1:] {
		var err error
		if acc, err = MergeMergedUpdates(acc, next); err != nil {
			return fmt.Errorf("folding merged updates: %w", err)
		}
	}
	i.Merged = &acc
	return nil
}
