// Package update defines incremental build updates and the rules for
// coalescing several of them into one aggregate.
//
// An Instruction describes what changed for one resource. It carries an
// optional per-chunk table of ModuleUpdate values and an optional
// MergedUpdate (entry metadata plus another per-chunk table). Merge combines
// an earlier instruction with a later one so that listeners only ever see a
// single, non-contradictory update per resource and batch.
//
// Merge is not commutative: the direction of an added/deleted pair decides
// whether the two cancel or turn into a partial update. Combinations that a
// well-behaved producer never emits (two consecutive "added" updates for the
// same chunk, for example) yield an *InvariantError instead of a guess.
package update
