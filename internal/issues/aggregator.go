package issues

import (
	"slices"
	"sort"
	"sync"

	"github.com/giantswarm/hotpatch/internal/resource"
)

// Sort orders issues by severity rank, then category rank. Issues of equal
// rank keep their relative order.
func Sort(list []Issue) {
	sort.SliceStable(list, func(a, b int) bool {
		sa, sb := SeverityRank(list[a].Severity), SeverityRank(list[b].Severity)
		if sa != sb {
			return sa < sb
		}
		return CategoryRank(list[a].Category) < CategoryRank(list[b].Category)
	})
}

// Aggregator keeps the issue set of every resource and the combined list.
type Aggregator struct {
	mu         sync.Mutex
	byResource map[resource.Key][]Issue
	current    []Issue
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byResource: make(map[resource.Key][]Issue)}
}

// Set replaces the issues reported for key. It returns the combined list and
// whether that list differs from the one returned by the previous call.
//
// Passing no issues removes the resource from the aggregation.
func (a *Aggregator) Set(key resource.Key, list []Issue) ([]Issue, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(list) == 0 {
		delete(a.byResource, key)
	} else {
		a.byResource[key] = slices.Clone(list)
	}

	next := a.combine()
	changed := !sameText(a.current, next)
	a.current = next
	return slices.Clone(next), changed
}

// Issues returns the current combined list.
func (a *Aggregator) Issues() []Issue {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.current)
}

// Reset drops every resource. It reports whether the combined list was non-empty.
func (a *Aggregator) Reset() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	had := len(a.current) > 0
	a.byResource = make(map[resource.Key][]Issue)
	a.current = nil
	return had
}

// combine must be called with a.mu held.
func (a *Aggregator) combine() []Issue {
	keys := make([]resource.Key, 0, len(a.byResource))
	for key := range a.byResource {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	seen := make(map[string]struct{})
	var out []Issue
	for _, key := range keys {
		for _, issue := range a.byResource[key] {
			text := issue.Format()
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			out = append(out, issue)
		}
	}
	Sort(out)
	return out
}

func sameText(a, b []Issue) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n].Format() != b[n].Format() {
			return false
		}
	}
	return true
}
