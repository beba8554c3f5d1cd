package deps

import (
	"slices"

	"github.com/matzehuels/refgraph/pkg/errors"
)

// CacheFactory builds a cache around its resolvers.
type CacheFactory func(env Env, resolvers []Resolver) (Cache, error)

// ResolverFactory builds one resolver.
type ResolverFactory func() Resolver

type resolverEntry struct {
	id  string
	new ResolverFactory
}

// Registry maps cache and resolver ids to factories. It replaces runtime type
// scanning: nothing is discovered unless the application registers it.
type Registry struct {
	caches    map[string]CacheFactory
	order     []string
	resolvers map[string][]resolverEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		caches:    make(map[string]CacheFactory),
		resolvers: make(map[string][]resolverEntry),
	}
}

// RegisterCache adds a cache factory. Ids must be unique.
func (r *Registry) RegisterCache(id string, f CacheFactory) error {
	if id == "" || f == nil {
		return errors.New(errors.ErrCodeConfiguration, "cache registration needs an id and a factory")
	}
	if _, ok := r.caches[id]; ok {
		return errors.New(errors.ErrCodeConfiguration, "cache %q registered twice", id)
	}
	r.caches[id] = f
	r.order = append(r.order, id)
	return nil
}

// RegisterResolver attaches a resolver factory to a registered cache.
// Resolvers run in registration order.
func (r *Registry) RegisterResolver(cacheID, resolverID string, f ResolverFactory) error {
	if _, ok := r.caches[cacheID]; !ok {
		return errors.New(errors.ErrCodeConfiguration, "resolver %q registered for unknown cache %q", resolverID, cacheID)
	}
	if resolverID == "" || f == nil {
		return errors.New(errors.ErrCodeConfiguration, "resolver registration needs an id and a factory")
	}
	for _, e := range r.resolvers[cacheID] {
		if e.id == resolverID {
			return errors.New(errors.ErrCodeConfiguration, "resolver %s/%s registered twice", cacheID, resolverID)
		}
	}
	r.resolvers[cacheID] = append(r.resolvers[cacheID], resolverEntry{id: resolverID, new: f})
	return nil
}

// CacheIDs returns registered cache ids in registration order.
func (r *Registry) CacheIDs() []string { return slices.Clone(r.order) }

// ResolverIDs returns the resolver ids registered for a cache.
func (r *Registry) ResolverIDs(cacheID string) []string {
	var ids []string
	for _, e := range r.resolvers[cacheID] {
		ids = append(ids, e.id)
	}
	return ids
}

// New instantiates a cache with all of its registered resolvers.
func (r *Registry) New(env Env, cacheID string) (Cache, error) {
	f, ok := r.caches[cacheID]
	if !ok {
		return nil, errors.New(errors.ErrCodeConfiguration, "unknown cache %q (available: %v)", cacheID, r.order)
	}
	var resolvers []Resolver
	for _, e := range r.resolvers[cacheID] {
		res := e.new()
		if res.ID() != e.id {
			return nil, errors.New(errors.ErrCodeConfiguration,
				"resolver registered as %q reports id %q", e.id, res.ID())
		}
		resolvers = append(resolvers, res)
	}
	c, err := f(env, resolvers)
	if err != nil {
		return nil, err
	}
	if c.ID() != cacheID {
		return nil, errors.New(errors.ErrCodeConfiguration, "cache registered as %q reports id %q", cacheID, c.ID())
	}
	return c, nil
}
