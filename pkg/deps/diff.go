package deps

import (
	"github.com/matzehuels/refgraph/pkg/graph"
)

// NeedsDiscovery reports whether a resource must be re-discovered by a
// resolver: it is new, its timestamp changed, or the resolver has never seen it.
func NeedsDiscovery(stored map[string]int64, known bool, resolverID string, ts int64) bool {
	if !known {
		return true
	}
	prev, ok := stored[resolverID]
	return !ok || prev != ts
}

// DropSelfEdges removes edges whose target id equals fromID, in place.
func DropSelfEdges(fromID string, deps []graph.Dependency) []graph.Dependency {
	out := deps[:0]
	for _, d := range deps {
		if d.Target.ID != fromID {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Prune deletes entries of state whose ids are not in listed and returns how
// many were removed.
func Prune[V any](state map[string]V, listed map[string]bool) int {
	n := 0
	for id := range state {
		if !listed[id] {
			delete(state, id)
			n++
		}
	}
	return n
}
