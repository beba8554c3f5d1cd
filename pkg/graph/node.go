package graph

import (
	"sync"
	"sync/atomic"
)

// SizeFunc computes a node's own size and whether that size counts toward tree
// size. Sub-resources whose bytes are absorbed by their container report false.
type SizeFunc func(Key) (size int64, contributes bool)

// Connection is a typed directed edge instance between two nodes.
// In Node.Dependencies, Node is the target; in Node.Referencers, Node is the source.
type Connection struct {
	Node *Node
	Type DependencyType
	Path []PathSegment
}

// Node is the canonical graph vertex for one resource.
//
// Key is immutable once the node exists. Name and Subtype are informational.
// The zero value is not usable; use [NewNode].
type Node struct {
	Key
	Name    string
	Subtype string

	Dependencies []Connection
	Referencers  []Connection

	sizer     SizeFunc
	sizeOnce  sync.Once
	ownSize   int64
	counts    bool
	hierarchy atomic.Int64
}

// NewNode creates a node. sizer may be nil, in which case the node has size 0
// and does not contribute to tree size.
func NewNode(key Key, name string, sizer SizeFunc) *Node {
	if name == "" {
		name = key.ID
	}
	n := &Node{Key: key, Name: name, sizer: sizer}
	n.hierarchy.Store(-1)
	return n
}

// OwnSize returns the node's own size and whether it contributes to tree size.
// The value is computed once, on first call.
func (n *Node) OwnSize() (size int64, contributes bool) {
	n.sizeOnce.Do(func() {
		if n.sizer != nil {
			n.ownSize, n.counts = n.sizer(n.Key)
		}
	})
	return n.ownSize, n.counts
}

// HierarchySize returns the last computed tree size, if any.
func (n *Node) HierarchySize() (int64, bool) {
	v := n.hierarchy.Load()
	return v, v >= 0
}

// SetHierarchySize stores a computed tree size. It has a single writer, the
// size worker, so no further coordination is needed.
func (n *Node) SetHierarchySize(v int64) { n.hierarchy.Store(v) }

// ResetHierarchySize marks the tree size as not computed.
func (n *Node) ResetHierarchySize() { n.hierarchy.Store(-1) }

// AddDependency appends an outgoing connection. It does not touch the
// target's referencers; see [Graph.LinkReferencers].
func (n *Node) AddDependency(target *Node, t DependencyType, path []PathSegment) {
	n.Dependencies = append(n.Dependencies, Connection{Node: target, Type: t, Path: path})
}

// DependencyCount returns the number of outgoing connections.
func (n *Node) DependencyCount() int { return len(n.Dependencies) }

// ReferencerCount returns the number of incoming connections.
func (n *Node) ReferencerCount() int { return len(n.Referencers) }
