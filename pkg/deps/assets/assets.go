package assets

import (
	"context"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/source"
)

const (
	ID      = "assets"
	Version = "v3"
)

// FileEntry is the cached state of one container.
type FileEntry struct {
	// Timestamps holds, per resolver, the container timestamp at its last
	// successful discovery.
	Timestamps map[string]int64
	Resources  []ResourceEntry
}

// ResourceEntry is one resource found in a container with its edges.
type ResourceEntry struct {
	Key  graph.Key
	Deps map[string][]graph.Dependency // resolver id -> edges
}

// Cache stores container-introspection results.
type Cache struct {
	host      source.Host
	logger    *log.Logger
	resolvers []ContentResolver

	files  map[string]*FileEntry
	lookup map[graph.Key]*ResourceEntry
	active *deps.ActiveSet
}

// New builds the cache. Every resolver must implement [ContentResolver].
func New(env deps.Env, resolvers []deps.Resolver) (deps.Cache, error) {
	if env.Host == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "assets cache needs a host")
	}
	c := &Cache{
		host:   env.Host,
		logger: env.Log().With("cache", ID),
		files:  make(map[string]*FileEntry),
	}
	for _, r := range resolvers {
		cr, ok := r.(ContentResolver)
		if !ok {
			return nil, errors.New(errors.ErrCodeConfiguration,
				"resolver %q cannot run in the %s cache", r.ID(), ID)
		}
		c.resolvers = append(c.resolvers, cr)
	}
	c.InitLookup()
	return c, nil
}

// ID returns the cache identifier.
func (c *Cache) ID() string { return ID }

// Resolvers returns the resolvers this cache runs, in registration order.
func (c *Cache) Resolvers() []deps.Resolver {
	out := make([]deps.Resolver, len(c.resolvers))
	for i, r := range c.resolvers {
		out[i] = r
	}
	return out
}

// NodeTypes returns the node types whose edges this cache owns.
func (c *Cache) NodeTypes() []string { return []string{graph.TypeFile, graph.TypeObject} }

// CanUpdate reports whether the host currently permits an update.
func (c *Cache) CanUpdate() bool { return c.host.CanUpdate() }

// Entry returns the cached state of a container.
func (c *Cache) Entry(id string) (*FileEntry, bool) {
	e, ok := c.files[id]
	return e, ok
}

// Len returns the number of cached containers.
func (c *Cache) Len() int { return len(c.files) }

// AddExistingNodes appends every container and every resource found in one.
func (c *Cache) AddExistingNodes(dst []graph.Key) []graph.Key {
	for _, id := range slices.Sorted(maps.Keys(c.files)) {
		dst = append(dst, graph.K(graph.TypeFile, id))
		for _, r := range c.files[id].Resources {
			dst = append(dst, r.Key)
		}
	}
	return dst
}

// GetDependenciesForID returns the edges of k from active resolvers, in
// resolver registration order.
func (c *Cache) GetDependenciesForID(k graph.Key) []graph.Dependency {
	entry, ok := c.lookup[k]
	if !ok {
		return nil
	}
	var out []graph.Dependency
	for _, r := range c.resolvers {
		if !c.active.ResolverActive(ID, r.ID()) {
			continue
		}
		for _, d := range entry.Deps[r.ID()] {
			if c.active.TypeVisible(ID, d.TypeID) {
				out = append(out, d)
			}
		}
	}
	return out
}

// InitLookup indexes resources by key. A key found in several containers
// resolves to the first container in id order.
func (c *Cache) InitLookup() {
	c.lookup = make(map[graph.Key]*ResourceEntry)
	for _, id := range slices.Sorted(maps.Keys(c.files)) {
		e := c.files[id]
		for i := range e.Resources {
			r := &e.Resources[i]
			if _, dup := c.lookup[r.Key]; !dup {
				c.lookup[r.Key] = r
			}
		}
	}
}

// Update returns a task that brings the cache up to date with the host.
func (c *Cache) Update(settings deps.UpdateSettings, active *deps.ActiveSet, shouldUpdate bool) deps.Task {
	if !shouldUpdate {
		return deps.Skipped(func() { c.active = active })
	}
	if !c.CanUpdate() {
		c.logger.Warn("host does not permit an update, keeping cached state")
		return deps.Skipped(func() { c.active = active })
	}
	return newUpdateTask(c, settings.WithDefaults(), active)
}

// Load replaces the state with the persisted file. Missing or corrupt files
// leave the cache empty.
func (c *Cache) Load(ctx context.Context, store cache.Store) error {
	files, err := load(ctx, store, c.logger)
	if err != nil {
		return err
	}
	c.files = files
	return nil
}

// Save writes the state to store.
func (c *Cache) Save(ctx context.Context, store cache.Store) error {
	return save(ctx, store, c.files)
}

var _ deps.Cache = (*Cache)(nil)
