package update

import "fmt"

// InvariantError reports a pair of updates that no well-behaved producer
// emits. Callers must treat it as fatal for the state being merged.
type InvariantError struct {
	Chunk string
	First Kind
	Next  Kind
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invalid chunk update for %q: cannot merge %s update with following %s update", e.Chunk, e.First, e.Next)
}
