package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/refgraph/pkg/analysis"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
)

// Snapshot is one successfully built graph and the read-only query surface
// over it. Snapshots are never mutated after publication, except for the
// hierarchy sizes written by the size worker.
type Snapshot struct {
	Graph *graph.Graph

	// Types holds every dependency type the graph's edges can carry. After a
	// fast build it also keeps the previous snapshot's types, since edges of
	// caches outside the activation are carried over.
	Types    *graph.TypeSet
	Handlers *graph.HandlerSet
	RunID    string
	BuiltAt  time.Time
	Fast     bool

	packer *analysis.Packer
}

func newSnapshot(g *graph.Graph, types *graph.TypeSet, handlers *graph.HandlerSet, runID string, fast bool) *Snapshot {
	return &Snapshot{
		Graph:    g,
		Types:    types,
		Handlers: handlers,
		RunID:    runID,
		BuiltAt:  time.Now(),
		Fast:     fast,
		packer:   analysis.NewPacker(handlers),
	}
}

// unionTypes returns a set holding the types of a and b; b wins on conflicts.
func unionTypes(a, b *graph.TypeSet) *graph.TypeSet {
	out := graph.NewTypeSet()
	for _, s := range []*graph.TypeSet{a, b} {
		for _, id := range s.IDs() {
			t, _ := s.Lookup(id)
			out.Add(t)
		}
	}
	return out
}

// GetNode looks up a node. A type without a handler is a CONFIGURATION error,
// a missing node is NODE_NOT_FOUND.
func (s *Snapshot) GetNode(id, typ string) (*graph.Node, error) {
	if _, err := s.Handlers.Get(typ); err != nil {
		return nil, err
	}
	n, ok := s.Graph.Node(graph.K(typ, id))
	if !ok {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "no %s node %q", typ, id)
	}
	return n, nil
}

// Dependencies returns the outgoing connections of n.
func (s *Snapshot) Dependencies(n *graph.Node) []graph.Connection { return n.Dependencies }

// Referencers returns the incoming connections of n.
func (s *Snapshot) Referencers(n *graph.Node) []graph.Connection { return n.Referencers }

// IsPacked reports whether n is included in the shipped output.
func (s *Snapshot) IsPacked(n *graph.Node) (bool, error) { return s.packer.IsPacked(n) }

// PackedSet computes the packed status of every node in one sweep.
func (s *Snapshot) PackedSet() (map[*graph.Node]bool, error) {
	return analysis.PackedSet(s.Graph, s.Handlers)
}

// TreeSize returns the aggregate size of n's hard-dependency subtree. A value
// already computed by the size worker is returned directly. On cancellation
// the partial sum is returned with complete set to false.
func (s *Snapshot) TreeSize(ctx context.Context, n *graph.Node) (size int64, complete bool) {
	if v, ok := n.HierarchySize(); ok {
		return v, true
	}
	return analysis.TreeSize(ctx, n)
}

// Nodes returns every node in build order.
func (s *Snapshot) Nodes() []*graph.Node { return s.Graph.Nodes() }
