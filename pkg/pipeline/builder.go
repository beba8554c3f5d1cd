package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/observability"
)

// buildCheckEvery is how many nodes the builder processes between
// cancellation checks.
const buildCheckEvery = 512

// Builder merges per-cache edge lists into one bidirectional graph.
type Builder struct {
	Types    *graph.TypeSet
	Handlers *graph.HandlerSet
	Logger   *log.Logger

	warned map[string]bool
}

// NewBuilder creates a builder. A nil logger uses the default logger.
func NewBuilder(types *graph.TypeSet, handlers *graph.HandlerSet, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{Types: types, Handlers: handlers, Logger: logger, warned: make(map[string]bool)}
}

func (b *Builder) newNode(k graph.Key) (*graph.Node, error) {
	h, err := b.Handlers.Get(k.Type)
	if err != nil {
		return nil, err
	}
	return graph.NewNode(k, h.Name(k.ID), b.Handlers.Sizer()), nil
}

func (b *Builder) ensure(g *graph.Graph, k graph.Key) (*graph.Node, bool, error) {
	if n, ok := g.Node(k); ok {
		return n, false, nil
	}
	n, err := b.newNode(k)
	if err != nil {
		return nil, false, err
	}
	g.Add(n)
	return n, true, nil
}

// resolveType falls back to neutral metadata for unregistered type ids.
func (b *Builder) resolveType(id string) graph.DependencyType {
	t, ok := b.Types.Lookup(id)
	if ok {
		return t
	}
	if !b.warned[id] {
		b.warned[id] = true
		b.Logger.Warn("edge uses unregistered dependency type, using neutral metadata", "type", id)
	}
	return graph.NeutralType(id)
}

func producers(caches []deps.Cache) map[string][]deps.Cache {
	out := make(map[string][]deps.Cache)
	for _, c := range caches {
		for _, t := range c.NodeTypes() {
			out[t] = append(out[t], c)
		}
	}
	return out
}

// Build runs the full unification pass:
//
//  1. collect every node any cache reports, first seen wins
//  2. ask each cache producing the node's type for its edges, materializing
//     targets on demand
//  3. mirror every forward edge into its target's referencers
func (b *Builder) Build(ctx context.Context, caches []deps.Cache) (*graph.Graph, error) {
	start := time.Now()
	observability.Build().OnBuildStart(ctx, false)

	g := graph.New()
	var keys []graph.Key
	for _, c := range caches {
		keys = c.AddExistingNodes(keys[:0])
		for _, k := range keys {
			if _, _, err := b.ensure(g, k); err != nil {
				return nil, err
			}
		}
	}

	byType := producers(caches)
	queue := g.Nodes()
	for i := 0; i < len(queue); i++ {
		if i%buildCheckEvery == 0 && ctx.Err() != nil {
			return nil, errors.Aborted(ctx.Err(), "graph build interrupted")
		}
		n := queue[i]
		for _, c := range byType[n.Type] {
			for _, d := range c.GetDependenciesForID(n.Key) {
				target, added, err := b.ensure(g, d.Target)
				if err != nil {
					return nil, err
				}
				if added {
					queue = append(queue, target)
				}
				n.AddDependency(target, b.resolveType(d.TypeID), d.Path)
			}
		}
	}

	g.LinkReferencers()
	observability.Build().OnBuildComplete(ctx, false, g.NodeCount(), g.EdgeCount(), time.Since(start))
	return g, nil
}

// FastUpdate re-derives, in place, the edges contributed by the scoped caches.
//
// Consistency contract:
//
//   - Nodes newly reported by a scoped cache are added.
//   - For every node whose type a scoped cache produces, edges whose
//     dependency type belongs to the scope are dropped together with their
//     mirrored referencer entries, then re-queried and re-mirrored. The
//     forward/backward invariant therefore holds on the result.
//   - Nodes that vanished from every cache are not removed; they remain as
//     orphans until the next full build.
//   - Edges of out-of-scope caches are not re-queried and reflect the state
//     at the previous build.
//
// Callers may use it after an update that only touched the scoped caches.
// Anything else needs [Builder.Build].
func (b *Builder) FastUpdate(ctx context.Context, g *graph.Graph, scoped []deps.Cache) error {
	start := time.Now()
	observability.Build().OnBuildStart(ctx, true)

	var keys []graph.Key
	for _, c := range scoped {
		keys = c.AddExistingNodes(keys[:0])
		for _, k := range keys {
			if _, _, err := b.ensure(g, k); err != nil {
				return err
			}
		}
	}

	// Fetch first so edge types not declared by any resolver still count as
	// in scope and are replaced rather than duplicated.
	scopeTypes := make(map[string]bool)
	for _, c := range scoped {
		for _, r := range c.Resolvers() {
			for _, t := range r.DependencyTypes() {
				scopeTypes[t.ID] = true
			}
		}
	}
	byType := producers(scoped)
	fresh := make(map[*graph.Node][]graph.Dependency)
	nodes := g.Nodes()
	for i, n := range nodes {
		if i%buildCheckEvery == 0 && ctx.Err() != nil {
			return errors.Aborted(ctx.Err(), "fast update interrupted")
		}
		for _, c := range byType[n.Type] {
			ds := c.GetDependenciesForID(n.Key)
			for _, d := range ds {
				scopeTypes[d.TypeID] = true
			}
			fresh[n] = append(fresh[n], ds...)
		}
	}

	for _, n := range nodes {
		if len(byType[n.Type]) == 0 {
			continue
		}
		kept := n.Dependencies[:0:0]
		for _, c := range n.Dependencies {
			if scopeTypes[c.Type.ID] {
				graph.Unmirror(n, c)
				continue
			}
			kept = append(kept, c)
		}
		n.Dependencies = kept
		for _, d := range fresh[n] {
			target, _, err := b.ensure(g, d.Target)
			if err != nil {
				return err
			}
			n.AddDependency(target, b.resolveType(d.TypeID), d.Path)
			graph.Mirror(n, n.Dependencies[len(n.Dependencies)-1])
		}
	}

	observability.Build().OnBuildComplete(ctx, true, g.NodeCount(), g.EdgeCount(), time.Since(start))
	return nil
}

// sortedIDs is used for stable log output.
func sortedIDs(caches []deps.Cache) []string {
	ids := make([]string, len(caches))
	for i, c := range caches {
		ids[i] = c.ID()
	}
	slices.Sort(ids)
	return ids
}
