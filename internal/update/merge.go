package update

import (
	"encoding/json"
	"errors"
	"maps"
)

// Merge combines instruction a with the later instruction b.
//
// The chunk tables and the merged updates are combined independently; a
// field absent from both inputs stays absent in the result.
func Merge(a, b Instruction) (Instruction, error) {
	var out Instruction

	chunks, err := MergeChunks(a.Chunks, b.Chunks)
	if err != nil {
		return Instruction{}, err
	}
	out.Chunks = chunks

	switch {
	case a.Merged == nil:
		out.Merged = b.Merged
	case b.Merged == nil:
		out.Merged = a.Merged
	default:
		merged, err := MergeMergedUpdates(*a.Merged, *b.Merged)
		if err != nil {
			return Instruction{}, err
		}
		out.Merged = &merged
	}

	return out, nil
}

// MergeAll folds instructions left to right with Merge.
func MergeAll(instructions ...Instruction) (Instruction, error) {
	var acc Instruction
	for i, next := range instructions {
		if i == 0 {
			acc = next
			continue
		}
		var err error
		if acc, err = Merge(acc, next); err != nil {
			return Instruction{}, err
		}
	}
	return acc, nil
}

// MergeMergedUpdates combines two merged updates. Entries are unioned with b
// winning on conflicts; chunks are merged with MergeChunks.
func MergeMergedUpdates(a, b MergedUpdate) (MergedUpdate, error) {
	var out MergedUpdate

	if a.Entries != nil || b.Entries != nil {
		out.Entries = make(map[string]json.RawMessage, len(a.Entries)+len(b.Entries))
		maps.Copy(out.Entries, a.Entries)
		maps.Copy(out.Entries, b.Entries)
	}

	chunks, err := MergeChunks(a.Chunks, b.Chunks)
	if err != nil {
		return MergedUpdate{}, err
	}
	out.Chunks = chunks
	return out, nil
}

// MergeChunks combines two chunk tables. A chunk present on one side only is
// taken as is; a chunk present on both sides is merged with MergeModules and
// dropped when the two updates cancel out.
func MergeChunks(a, b ChunkUpdates) (ChunkUpdates, error) {
	if a == nil && b == nil {
		return nil, nil
	}

	out := make(ChunkUpdates, len(a)+len(b))
	for id, ua := range a {
		ub, ok := b[id]
		if !ok {
			out[id] = ua
			continue
		}
		merged, keep, err := MergeModules(ua, ub)
		if err != nil {
			var ie *InvariantError
			if errors.As(err, &ie) && ie.Chunk == "" {
				ie.Chunk = id
			}
			return nil, err
		}
		if keep {
			out[id] = merged
		}
	}
	for id, ub := range b {
		if _, ok := a[id]; !ok {
			out[id] = ub
		}
	}
	return out, nil
}

// MergeModules combines two updates of the same chunk. The boolean result is
// false when the updates cancel and the chunk must be dropped.
func MergeModules(a, b ModuleUpdate) (ModuleUpdate, bool, error) {
	switch {
	case a.Kind == KindAdded && b.Kind == KindDeleted:
		return ModuleUpdate{}, false, nil

	case a.Kind == KindDeleted && b.Kind == KindAdded:
		deleted := orEmpty(a.Modules)
		added := orEmpty(b.Modules)
		nowAdded := added.Difference(deleted)
		nowDeleted := deleted.Difference(added)
		if nowAdded.IsEmpty() && nowDeleted.IsEmpty() {
			return ModuleUpdate{}, false, nil
		}
		return ModuleUpdate{Kind: KindPartial, Added: nowAdded, Deleted: nowDeleted}, true, nil

	case a.Kind == KindPartial && b.Kind == KindPartial:
		// The later update wins for a module both touch. A module added by a
		// and deleted by b stays deleted: it may have existed in the base.
		added := orEmpty(a.Added).Union(orEmpty(b.Added)).Difference(orEmpty(b.Deleted))
		deleted := orEmpty(a.Deleted).Union(orEmpty(b.Deleted)).Difference(orEmpty(b.Added))
		// Kept even when both sets end up empty: the chunk was still touched.
		return ModuleUpdate{Kind: KindPartial, Added: added, Deleted: deleted}, true, nil

	case a.Kind == KindAdded && b.Kind == KindPartial:
		modules := orEmpty(a.Modules).Union(orEmpty(b.Added)).Difference(orEmpty(b.Deleted))
		return ModuleUpdate{Kind: KindAdded, Modules: modules}, true, nil

	case a.Kind == KindPartial && b.Kind == KindDeleted:
		modules := orEmpty(b.Modules).Difference(orEmpty(a.Added))
		return ModuleUpdate{Kind: KindDeleted, Modules: modules}, true, nil
	}

	return ModuleUpdate{}, false, &InvariantError{First: a.Kind, Next: b.Kind}
}
