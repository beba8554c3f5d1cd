package graph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownNode is returned when an operation names a key absent from the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrAsymmetricEdge is returned by [Graph.Validate] when a dependency has no
	// mirrored referencer entry, or vice versa.
	ErrAsymmetricEdge = errors.New("dependency and referencer lists disagree")
)

// Graph is a snapshot of the reference graph: one [Node] per [Key].
//
// The zero value is not usable - use New to create a Graph.
// Graph is not safe for concurrent mutation; built graphs are treated as
// read-only by consumers.
type Graph struct {
	nodes map[Key]*Node
	order []*Node // insertion order, for deterministic iteration
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[Key]*Node)}
}

// Node returns the node for k.
func (g *Graph) Node(k Key) (*Node, bool) {
	n, ok := g.nodes[k]
	return n, ok
}

// Add inserts n unless a node with the same key exists. The node that ends up
// in the graph is returned: first seen wins, later duplicates are merged into it.
func (g *Graph) Add(n *Node) (*Node, bool) {
	if existing, ok := g.nodes[n.Key]; ok {
		return existing, false
	}
	g.nodes[n.Key] = n
	g.order = append(g.order, n)
	return n, true
}

// Ensure returns the node for k, creating it with mk when absent.
func (g *Graph) Ensure(k Key, mk func(Key) *Node) *Node {
	if n, ok := g.nodes[k]; ok {
		return n
	}
	n, _ := g.Add(mk(k))
	return n
}

// Nodes returns all nodes in insertion order. The slice is a copy; the nodes are not.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.order) }

// SortedNodes returns all nodes ordered by key.
func (g *Graph) SortedNodes() []*Node {
	out := slices.Clone(g.order)
	slices.SortFunc(out, func(a, b *Node) int { return a.Key.Compare(b.Key) })
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

// EdgeCount returns the number of forward connections.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, n := range g.order {
		total += len(n.Dependencies)
	}
	return total
}

// LinkReferencers rebuilds every Referencers list from the Dependencies lists.
// This is the reciprocal pass of a graph build: afterwards each forward
// connection has exactly one mirrored entry.
func (g *Graph) LinkReferencers() {
	for _, n := range g.order {
		n.Referencers = n.Referencers[:0]
	}
	for _, n := range g.order {
		for _, c := range n.Dependencies {
			c.Node.Referencers = append(c.Node.Referencers, Connection{Node: n, Type: c.Type, Path: c.Path})
		}
	}
}

// Clone returns a deep copy with fresh nodes. Edge paths are shared, since
// they are never mutated after a build. Hierarchy sizes are not copied.
func (g *Graph) Clone() *Graph {
	out := &Graph{nodes: make(map[Key]*Node, len(g.order)), order: make([]*Node, 0, len(g.order))}
	remap := make(map[*Node]*Node, len(g.order))
	for _, n := range g.order {
		c := NewNode(n.Key, n.Name, n.sizer)
		c.Subtype = n.Subtype
		remap[n] = c
		out.nodes[c.Key] = c
		out.order = append(out.order, c)
	}
	copyConns := func(src []Connection) []Connection {
		if len(src) == 0 {
			return nil
		}
		dst := make([]Connection, len(src))
		for i, c := range src {
			dst[i] = Connection{Node: remap[c.Node], Type: c.Type, Path: c.Path}
		}
		return dst
	}
	for _, n := range g.order {
		c := remap[n]
		c.Dependencies = copyConns(n.Dependencies)
		c.Referencers = copyConns(n.Referencers)
	}
	return out
}

// Mirror appends the referencer entry for one forward connection of from.
func Mirror(from *Node, c Connection) {
	c.Node.Referencers = append(c.Node.Referencers, Connection{Node: from, Type: c.Type, Path: c.Path})
}

// Unmirror removes one referencer entry matching a forward connection of from.
// It reports whether an entry was found.
func Unmirror(from *Node, c Connection) bool {
	refs := c.Node.Referencers
	for i, r := range refs {
		if r.Node == from && r.Type.ID == c.Type.ID && slices.Equal(r.Path, c.Path) {
			c.Node.Referencers = slices.Delete(refs, i, i+1)
			return true
		}
	}
	return false
}

type edgeKey struct {
	from, to Key
	typ      string
}

// Validate checks graph integrity: every connection endpoint belongs to this
// graph and forward/backward lists are exact mirrors (as multisets).
func (g *Graph) Validate() error {
	balance := make(map[edgeKey]int)
	for _, n := range g.order {
		for _, c := range n.Dependencies {
			if g.nodes[c.Node.Key] != c.Node {
				return fmt.Errorf("%w: %s -> %s", ErrUnknownNode, n.Key, c.Node.Key)
			}
			balance[edgeKey{n.Key, c.Node.Key, c.Type.ID}]++
		}
		for _, c := range n.Referencers {
			if g.nodes[c.Node.Key] != c.Node {
				return fmt.Errorf("%w: %s <- %s", ErrUnknownNode, n.Key, c.Node.Key)
			}
			balance[edgeKey{c.Node.Key, n.Key, c.Type.ID}]--
		}
	}
	for k, v := range balance {
		if v != 0 {
			return fmt.Errorf("%w: %s -[%s]-> %s (%+d)", ErrAsymmetricEdge, k.from, k.typ, k.to, v)
		}
	}
	return nil
}
