package update

import (
	"encoding/json"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Kind is the shape of a ModuleUpdate.
type Kind string

const (
	// KindAdded means the chunk appeared and carries the listed modules.
	KindAdded Kind = "added"

	// KindDeleted means the chunk went away together with the listed modules.
	KindDeleted Kind = "deleted"

	// KindPartial means modules were added to and removed from an existing chunk.
	KindPartial Kind = "partial"
)

// ModuleSet is an unordered set of module identifiers.
type ModuleSet = mapset.Set[string]

// NewModuleSet returns a set holding ids.
func NewModuleSet(ids ...string) ModuleSet {
	return mapset.NewThreadUnsafeSet(ids...)
}

// ModuleUpdate describes how the module set of one chunk changed.
//
// Modules is used by KindAdded and KindDeleted; Added and Deleted are used by
// KindPartial.
type ModuleUpdate struct {
	Kind    Kind
	Modules ModuleSet
	Added   ModuleSet
	Deleted ModuleSet
}

// Added builds a KindAdded update.
func Added(ids ...string) ModuleUpdate {
	return ModuleUpdate{Kind: KindAdded, Modules: NewModuleSet(ids...)}
}

// Deleted builds a KindDeleted update.
func Deleted(ids ...string) ModuleUpdate {
	return ModuleUpdate{Kind: KindDeleted, Modules: NewModuleSet(ids...)}
}

// Partial builds a KindPartial update.
func Partial(added, deleted []string) ModuleUpdate {
	return ModuleUpdate{
		Kind:    KindPartial,
		Added:   NewModuleSet(added...),
		Deleted: NewModuleSet(deleted...),
	}
}

// ModuleIDs returns the sorted Modules of an added or deleted update.
func (u ModuleUpdate) ModuleIDs() []string { return sortedIDs(u.Modules) }

// AddedIDs returns the sorted Added set of a partial update.
func (u ModuleUpdate) AddedIDs() []string { return sortedIDs(u.Added) }

// DeletedIDs returns the sorted Deleted set of a partial update.
func (u ModuleUpdate) DeletedIDs() []string { return sortedIDs(u.Deleted) }

// Equal reports whether u and o describe the same change.
func (u ModuleUpdate) Equal(o ModuleUpdate) bool {
	if u.Kind != o.Kind {
		return false
	}
	if u.Kind == KindPartial {
		return orEmpty(u.Added).Equal(orEmpty(o.Added)) && orEmpty(u.Deleted).Equal(orEmpty(o.Deleted))
	}
	return orEmpty(u.Modules).Equal(orEmpty(o.Modules))
}

// ChunkUpdates maps a chunk identifier to the update of its modules.
//
// A nil map means "no chunk table", which is distinct from an empty table.
type ChunkUpdates map[string]ModuleUpdate

// Equal reports whether c and o hold equal updates for the same chunks.
func (c ChunkUpdates) Equal(o ChunkUpdates) bool {
	if (c == nil) != (o == nil) || len(c) != len(o) {
		return false
	}
	for id, u := range c {
		ou, ok := o[id]
		if !ok || !u.Equal(ou) {
			return false
		}
	}
	return true
}

// MergedUpdate pairs chunk entry metadata with per-chunk module updates.
type MergedUpdate struct {
	// Entries holds opaque entry metadata keyed by identifier. Later values win.
	Entries map[string]json.RawMessage

	// Chunks holds the module updates of the merged chunks.
	Chunks ChunkUpdates
}

// Instruction is the update delivered for one resource.
//
// Either field may be absent (nil); absence survives Merge.
type Instruction struct {
	Chunks ChunkUpdates
	Merged *MergedUpdate
}

// IsZero reports whether the instruction carries neither chunks nor merged data.
func (i Instruction) IsZero() bool {
	return i.Chunks == nil && i.Merged == nil
}

func orEmpty(s ModuleSet) ModuleSet {
	if s == nil {
		return NewModuleSet()
	}
	return s
}

func sortedIDs(s ModuleSet) []string {
	if s == nil {
		return []string{}
	}
	ids := s.ToSlice()
	sort.Strings(ids)
	return ids
}
