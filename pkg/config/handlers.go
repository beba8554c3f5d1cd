package config

import (
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/source"
)

// Classify returns the packing class of a file or object id under the
// configured roots and exclusions. Objects also match through their
// container path.
func (p PackingConfig) Classify(id string) graph.PackClass {
	container, _, isObject := graph.SplitObjectID(id)
	match := func(patterns []string) bool {
		return source.MatchAny(patterns, id) || (isObject && source.MatchAny(patterns, container))
	}
	switch {
	case match(p.Roots):
		return graph.PackAlways
	case match(p.Excluded):
		return graph.PackNever
	default:
		return graph.PackDerived
	}
}

// Handlers returns the node handlers for file, object and bundle nodes.
// File sizes come from host.
func (c *Config) Handlers(host source.Host) *graph.HandlerSet {
	return graph.NewHandlerSet(
		&graph.BasicHandler{
			Type:     graph.TypeFile,
			NameFunc: graph.BaseName,
			SizeFunc: func(id string) (int64, bool) {
				n, _ := host.Size(id)
				return n, true
			},
			PackFunc: c.Packing.Classify,
		},
		&graph.BasicHandler{
			Type: graph.TypeObject,
			NameFunc: func(id string) string {
				if _, local, ok := graph.SplitObjectID(id); ok {
					return local
				}
				return id
			},
			PackFunc: c.Packing.Classify,
		},
		&graph.BasicHandler{
			Type:     graph.TypeBundle,
			PackFunc: func(string) graph.PackClass { return graph.PackAlways },
		},
	)
}
