package analysis

import (
	"sync"

	"github.com/matzehuels/refgraph/pkg/graph"
)

type mark uint8

const (
	unknown mark = iota
	inProgress
	packed
	notPacked
)

// Packer answers packed queries for one graph snapshot.
type Packer struct {
	handlers *graph.HandlerSet

	mu   sync.Mutex
	memo map[*graph.Node]mark
}

// NewPacker creates a packer using handlers for node classification.
func NewPacker(handlers *graph.HandlerSet) *Packer {
	return &Packer{handlers: handlers, memo: make(map[*graph.Node]mark)}
}

// IsPacked reports whether n is packed. The only error is a node type without
// a registered handler anywhere on the search path.
func (p *Packer) IsPacked(n *graph.Node) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok, _, err := p.search(n)
	return ok, err
}

// search returns (packed, tentative, err). tentative is true when a negative
// answer relied on a node still in progress.
func (p *Packer) search(n *graph.Node) (bool, bool, error) {
	switch p.memo[n] {
	case packed:
		return true, false, nil
	case notPacked:
		return false, false, nil
	case inProgress:
		return false, true, nil
	}

	h, err := p.handlers.Get(n.Type)
	if err != nil {
		return false, false, err
	}
	switch h.Packing(n.ID) {
	case graph.PackAlways:
		p.memo[n] = packed
		return true, false, nil
	case graph.PackNever:
		p.memo[n] = notPacked
		return false, false, nil
	}

	p.memo[n] = inProgress
	tentative := false
	for _, r := range n.Referencers {
		if r.Type.IsIndirect {
			continue
		}
		ok, t, err := p.search(r.Node)
		if err != nil {
			delete(p.memo, n)
			return false, false, err
		}
		if ok {
			p.memo[n] = packed
			return true, false, nil
		}
		tentative = tentative || t
	}
	if tentative {
		delete(p.memo, n)
		return false, true, nil
	}
	p.memo[n] = notPacked
	return false, false, nil
}

// PackedSet returns every packed node of g, sweeping forward from the
// always-packed roots along non-indirect dependency edges.
func PackedSet(g *graph.Graph, handlers *graph.HandlerSet) (map[*graph.Node]bool, error) {
	result := make(map[*graph.Node]bool)
	var stack []*graph.Node
	class := make(map[*graph.Node]graph.PackClass, g.NodeCount())

	for _, n := range g.Nodes() {
		h, err := handlers.Get(n.Type)
		if err != nil {
			return nil, err
		}
		class[n] = h.Packing(n.ID)
		if class[n] == graph.PackAlways {
			result[n] = true
			stack = append(stack, n)
		}
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range n.Dependencies {
			if c.Type.IsIndirect || result[c.Node] {
				continue
			}
			if class[c.Node] == graph.PackNever {
				continue
			}
			result[c.Node] = true
			stack = append(stack, c.Node)
		}
	}
	return result, nil
}
