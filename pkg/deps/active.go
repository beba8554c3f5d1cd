package deps

import (
	"maps"
	"slices"

	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
)

// Activation enables a resolver of a cache. An empty Resolver enables every
// resolver of the cache; empty Types enables every type the resolver declares.
type Activation struct {
	Cache    string   `toml:"cache" json:"cache"`
	Resolver string   `toml:"resolver" json:"resolver,omitempty"`
	Types    []string `toml:"types" json:"types,omitempty"`
}

// ActiveSet is the resolved, validated form of an activation list.
type ActiveSet struct {
	resolvers map[string]map[string]bool // cache -> resolver
	types     map[string]map[string]bool // cache -> active type
	declared  map[string]map[string]bool // cache -> any declared type
}

// NewActiveSet validates acts against instantiated caches. An empty list
// activates every resolver of every cache. Unknown caches, resolvers or types
// are configuration errors.
func NewActiveSet(caches []Cache, acts []Activation) (*ActiveSet, error) {
	byID := make(map[string]Cache, len(caches))
	a := &ActiveSet{
		resolvers: make(map[string]map[string]bool),
		types:     make(map[string]map[string]bool),
		declared:  make(map[string]map[string]bool),
	}
	for _, c := range caches {
		byID[c.ID()] = c
		a.declared[c.ID()] = make(map[string]bool)
		for _, r := range c.Resolvers() {
			for _, t := range r.DependencyTypes() {
				a.declared[c.ID()][t.ID] = true
			}
		}
	}

	if len(acts) == 0 {
		for _, c := range caches {
			acts = append(acts, Activation{Cache: c.ID()})
		}
	}

	for _, act := range acts {
		c, ok := byID[act.Cache]
		if !ok {
			return nil, errors.New(errors.ErrCodeConfiguration, "activation names unknown cache %q", act.Cache)
		}
		var matched []Resolver
		for _, r := range c.Resolvers() {
			if act.Resolver == "" || r.ID() == act.Resolver {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			return nil, errors.New(errors.ErrCodeConfiguration,
				"cache %q has no resolver %q (available: %v)", act.Cache, act.Resolver, ResolverIDs(c.Resolvers()))
		}
		for _, r := range matched {
			a.enable(act.Cache, r, act.Types)
		}
		for _, typ := range act.Types {
			if !declares(matched, typ) {
				return nil, errors.New(errors.ErrCodeConfiguration,
					"dependency type %q is not declared by %s/%s", typ, act.Cache, act.Resolver)
			}
		}
	}
	return a, nil
}

func (a *ActiveSet) enable(cacheID string, r Resolver, types []string) {
	if a.resolvers[cacheID] == nil {
		a.resolvers[cacheID] = make(map[string]bool)
		a.types[cacheID] = make(map[string]bool)
	}
	a.resolvers[cacheID][r.ID()] = true
	for _, t := range r.DependencyTypes() {
		if len(types) == 0 || slices.Contains(types, t.ID) {
			a.types[cacheID][t.ID] = true
		}
	}
}

func declares(rs []Resolver, typ string) bool {
	for _, r := range rs {
		for _, t := range r.DependencyTypes() {
			if t.ID == typ {
				return true
			}
		}
	}
	return false
}

// Caches returns the ids of caches with at least one active resolver.
func (a *ActiveSet) Caches() []string {
	if a == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(a.resolvers))
}

// ResolverActive reports whether a resolver of a cache is enabled.
// A nil set enables everything.
func (a *ActiveSet) ResolverActive(cacheID, resolverID string) bool {
	if a == nil {
		return true
	}
	return a.resolvers[cacheID][resolverID]
}

// TypeVisible reports whether edges of a dependency type may be returned by a
// cache. Types no resolver of the cache declared stay visible so the builder
// can fall back to neutral metadata for them.
func (a *ActiveSet) TypeVisible(cacheID, typeID string) bool {
	if a == nil {
		return true
	}
	if !a.declared[cacheID][typeID] {
		return true
	}
	return a.types[cacheID][typeID]
}

// Visible reports whether an edge produced by resolverID is visible.
func (a *ActiveSet) Visible(cacheID, resolverID, typeID string) bool {
	return a.ResolverActive(cacheID, resolverID) && a.TypeVisible(cacheID, typeID)
}

// Activations returns a normalized activation list, one entry per active
// resolver with its active types sorted.
func (a *ActiveSet) Activations(caches []Cache) []Activation {
	var out []Activation
	for _, c := range caches {
		for _, r := range c.Resolvers() {
			if !a.ResolverActive(c.ID(), r.ID()) {
				continue
			}
			act := Activation{Cache: c.ID(), Resolver: r.ID()}
			for _, t := range r.DependencyTypes() {
				if a.TypeVisible(c.ID(), t.ID) {
					act.Types = append(act.Types, t.ID)
				}
			}
			slices.Sort(act.Types)
			out = append(out, act)
		}
	}
	return out
}

// TypeSetFor collects dependency type metadata declared by the active
// resolvers of caches. Two resolvers declaring the same id with different
// metadata is a configuration error.
func TypeSetFor(caches []Cache, active *ActiveSet) (*graph.TypeSet, error) {
	ts := graph.NewTypeSet()
	for _, c := range caches {
		for _, r := range c.Resolvers() {
			if !active.ResolverActive(c.ID(), r.ID()) {
				continue
			}
			for _, t := range r.DependencyTypes() {
				if err := ts.Add(t); err != nil {
					return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "resolver %s/%s", c.ID(), r.ID())
				}
			}
		}
	}
	return ts, nil
}
