// Package bundles implements the build-configuration cache.
//
// A bundle manifest is a TOML resource in the content repository:
//
//	[[bundle]]
//	name = "core"
//	include = ["scenes/**", "textures/*.png"]
//
// Every bundle becomes a node of type "bundle" with a group-membership edge to
// each listed resource matching one of its include patterns.
//
// Unlike container introspection, membership depends on the whole listing, so
// the cache re-resolves when the manifest timestamp changes, when a resolver is
// new, or when the fingerprint of the listed ids changes.
//
// State is written to "bundles_v2.cache":
//
//	int32 timestamp count, then (string resolver, int64 manifest timestamp) sorted
//	string listing fingerprint
//	int32 bundle count, per bundle: string name, dependency list
//	string EOF marker
package bundles

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/observability"
	"github.com/matzehuels/refgraph/pkg/source"
)

const (
	ID      = "bundles"
	Version = "v2"

	GroupMembership = "group-membership"

	// DefaultManifest is the manifest resource id used when none is configured.
	DefaultManifest = "bundles.toml"
)

// FileName is the persisted cache file name.
var FileName = cache.FileName(ID, Version)

// Bundle is one manifest entry.
type Bundle struct {
	Name    string   `toml:"name"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// Manifest is a parsed bundle manifest.
type Manifest struct {
	Bundles []Bundle `toml:"bundle"`
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(raw), &m); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(m.Bundles))
	for i, b := range m.Bundles {
		if b.Name == "" {
			return nil, fmt.Errorf("bundle %d: missing name", i)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("bundle %q: duplicate name", b.Name)
		}
		seen[b.Name] = true
	}
	return &m, nil
}

// ManifestResolver derives bundle edges from a manifest and the full listing.
type ManifestResolver interface {
	deps.Resolver
	Resolve(m *Manifest, listed []source.Resource) map[string][]graph.Dependency
}

type groupMembership struct{}

// NewGroupMembershipResolver links bundles to their included resources.
func NewGroupMembershipResolver() deps.Resolver { return groupMembership{} }

func (groupMembership) ID() string { return GroupMembership }

func (groupMembership) DependencyTypes() []graph.DependencyType {
	return []graph.DependencyType{{ID: GroupMembership, Color: "#43a047"}}
}

func (groupMembership) Resolve(m *Manifest, listed []source.Resource) map[string][]graph.Dependency {
	out := make(map[string][]graph.Dependency, len(m.Bundles))
	for _, b := range m.Bundles {
		var ds []graph.Dependency
		for _, r := range listed {
			if !source.MatchAny(b.Include, r.ID) || source.MatchAny(b.Exclude, r.ID) {
				continue
			}
			ds = append(ds, graph.Dependency{
				Target: graph.K(graph.TypeFile, r.ID),
				TypeID: GroupMembership,
				Path:   []graph.PathSegment{{Name: "include", Kind: graph.SegmentProperty}},
			})
		}
		out[b.Name] = ds
	}
	return out
}

// =============================================================================
// Cache
// =============================================================================

type state struct {
	timestamps  map[string]int64
	fingerprint string
	bundles     map[string][]graph.Dependency
}

func emptyState() *state {
	return &state{timestamps: map[string]int64{}, bundles: map[string][]graph.Dependency{}}
}

// Cache stores bundle membership.
type Cache struct {
	host      source.Host
	logger    *log.Logger
	manifest  string
	resolvers []ManifestResolver
	typeOwner map[string]string // dependency type -> resolver

	st     *state
	active *deps.ActiveSet
}

// Factory returns a cache factory reading the given manifest resource.
func Factory(manifest string) deps.CacheFactory {
	if manifest == "" {
		manifest = DefaultManifest
	}
	return func(env deps.Env, resolvers []deps.Resolver) (deps.Cache, error) {
		if env.Host == nil {
			return nil, errors.New(errors.ErrCodeConfiguration, "bundles cache needs a host")
		}
		c := &Cache{
			host:      env.Host,
			logger:    env.Log().With("cache", ID),
			manifest:  manifest,
			typeOwner: make(map[string]string),
			st:        emptyState(),
		}
		for _, r := range resolvers {
			mr, ok := r.(ManifestResolver)
			if !ok {
				return nil, errors.New(errors.ErrCodeConfiguration, "resolver %q cannot run in the %s cache", r.ID(), ID)
			}
			c.resolvers = append(c.resolvers, mr)
			for _, t := range r.DependencyTypes() {
				c.typeOwner[t.ID] = r.ID()
			}
		}
		return c, nil
	}
}

// Register adds the bundles cache and its resolver to reg.
func Register(reg *deps.Registry, manifest string) error {
	if err := reg.RegisterCache(ID, Factory(manifest)); err != nil {
		return err
	}
	return reg.RegisterResolver(ID, GroupMembership, NewGroupMembershipResolver)
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
func (c *Cache) NodeTypes() []string { return []string{graph.TypeBundle} }

// CanUpdate reports whether the host currently permits an update.
func (c *Cache) CanUpdate() bool { return c.host.CanUpdate() }

// Manifest returns the manifest resource id.
func (c *Cache) Manifest() string { return c.manifest }

// Bundles returns the cached bundle names, sorted.
func (c *Cache) Bundles() []string { return slices.Sorted(maps.Keys(c.st.bundles)) }

// AddExistingNodes appends a key for every bundle in the cache.
func (c *Cache) AddExistingNodes(dst []graph.Key) []graph.Key {
	for _, name := range c.Bundles() {
		dst = append(dst, graph.K(graph.TypeBundle, name))
	}
	return dst
}

// GetDependenciesForID returns the visible members of a bundle.
func (c *Cache) GetDependenciesForID(k graph.Key) []graph.Dependency {
	if k.Type != graph.TypeBundle {
		return nil
	}
	var out []graph.Dependency
	for _, d := range c.st.bundles[k.ID] {
		owner, ok := c.typeOwner[d.TypeID]
		if ok && !c.active.ResolverActive(ID, owner) {
			continue
		}
		if c.active.TypeVisible(ID, d.TypeID) {
			out = append(out, d)
		}
	}
	return out
}

// InitLookup has nothing to index: bundles are keyed by name already.
func (c *Cache) InitLookup() {}

// Update returns the task refreshing the cache, or a skipped task that only
// installs the activation when updating is off or denied.
func (c *Cache) Update(settings deps.UpdateSettings, active *deps.ActiveSet, shouldUpdate bool) deps.Task {
	if !shouldUpdate {
		return deps.Skipped(func() { c.active = active })
	}
	if !c.CanUpdate() {
		c.logger.Warn("host does not permit an update, keeping cached state")
		return deps.Skipped(func() { c.active = active })
	}
	return &updateTask{c: c, active: active}
}

// =============================================================================
// Persistence
// =============================================================================

func encode(st *state) []byte {
	w := cache.NewWriter(cache.DefaultBufferSize)
	w.WriteCount(len(st.timestamps))
	for _, rid := range slices.Sorted(maps.Keys(st.timestamps)) {
		w.WriteString(rid)
		w.WriteInt64(st.timestamps[rid])
	}
	w.WriteString(st.fingerprint)
	w.WriteCount(len(st.bundles))
	for _, name := range slices.Sorted(maps.Keys(st.bundles)) {
		w.WriteString(name)
		cache.WriteDependencies(w, st.bundles[name])
	}
	w.WriteEOF()
	return w.Bytes()
}

func decode(data []byte) (*state, error) {
	r := cache.NewReader(data)
	st := emptyState()
	for range r.ReadCount() {
		rid := r.ReadString()
		st.timestamps[rid] = r.ReadInt64()
	}
	st.fingerprint = r.ReadString()
	for range r.ReadCount() {
		name := r.ReadString()
		st.bundles[name] = cache.ReadDependencies(r)
	}
	if err := r.ReadEOF(); err != nil {
		return nil, err
	}
	return st, nil
}

// Load replaces the cached state with the persisted file. Missing or corrupt
// files leave the cache empty.
func (c *Cache) Load(ctx context.Context, store cache.Store) error {
	data, ok, err := store.Read(ctx, FileName)
	if err != nil {
		return fmt.Errorf("read %s: %w", FileName, err)
	}
	c.st = emptyState()
	if !ok {
		observability.Cache().OnCacheLoad(ctx, ID, 0, false)
		return nil
	}
	st, err := decode(data)
	if err != nil {
		c.logger.Warn("discarding corrupt cache file", "file", FileName, "err", err)
		observability.Cache().OnCacheLoad(ctx, ID, len(data), true)
		return nil
	}
	c.st = st
	observability.Cache().OnCacheLoad(ctx, ID, len(data), false)
	return nil
}

// Save persists the cached state.
func (c *Cache) Save(ctx context.Context, store cache.Store) error {
	data := encode(c.st)
	if err := store.Write(ctx, FileName, data); err != nil {
		return fmt.Errorf("write %s: %w", FileName, err)
	}
	observability.Cache().OnCacheSave(ctx, ID, len(data))
	return nil
}

var _ deps.Cache = (*Cache)(nil)
