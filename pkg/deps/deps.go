package deps

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/source"
)

const (
	DefaultBatchSize       = 32  // Resources per suspension point
	DefaultCleanupInterval = 200 // Resources between host cleanup steps
)

// Resolver is a pluggable discovery strategy.
type Resolver interface {
	// ID returns the stable resolver identifier (e.g., "object-reference").
	ID() string
	// DependencyTypes returns metadata for every edge type the resolver emits.
	DependencyTypes() []graph.DependencyType
}

// Cache owns persistent edge storage and update logic for a set of resolvers.
type Cache interface {
	// ID returns the logical cache name, also used in its file name.
	ID() string

	// Resolvers returns the resolvers this cache was built with.
	Resolvers() []Resolver

	// NodeTypes lists the node types this cache can produce edges for.
	NodeTypes() []string

	// CanUpdate reports whether the host currently permits discovery.
	CanUpdate() bool

	// Update prepares an incremental update. The active set takes effect when
	// the returned task is committed. With shouldUpdate false the task
	// performs no discovery.
	Update(settings UpdateSettings, active *ActiveSet, shouldUpdate bool) Task

	// AddExistingNodes appends every node the cache knows to dst.
	AddExistingNodes(dst []graph.Key) []graph.Key

	// GetDependenciesForID returns the outgoing edges of one node, limited to
	// active resolvers and dependency types.
	GetDependenciesForID(k graph.Key) []graph.Dependency

	// Load replaces the in-memory state with the persisted state. A missing
	// or corrupt file yields an empty cache rather than an error.
	Load(ctx context.Context, store cache.Store) error

	// Save persists the in-memory state.
	Save(ctx context.Context, store cache.Store) error

	// InitLookup rebuilds in-memory indexes.
	InitLookup()
}

// UpdateSettings tunes the update pass. Neither value affects results.
type UpdateSettings struct {
	BatchSize       int // Resources per Step (default: 32)
	CleanupInterval int // Resources between host cleanups (default: 200)
}

// WithDefaults returns a copy of UpdateSettings with zero values replaced by defaults.
func (s UpdateSettings) WithDefaults() UpdateSettings {
	out := s
	if out.BatchSize <= 0 {
		out.BatchSize = DefaultBatchSize
	}
	if out.CleanupInterval <= 0 {
		out.CleanupInterval = DefaultCleanupInterval
	}
	return out
}

// Env carries the collaborators a cache factory needs.
type Env struct {
	Host   source.Host
	Logger *log.Logger
}

// Log returns the configured logger or the default one.
func (e Env) Log() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// ResolverIDs returns the ids of rs in order.
func ResolverIDs(rs []Resolver) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID()
	}
	return ids
}
