package analysis

import (
	"context"

	"github.com/matzehuels/refgraph/pkg/graph"
)

// checkEvery is how many nodes TreeSize visits between cancellation checks.
const checkEvery = 1024

// TreeSize sums the own size of every node reachable from root through hard
// edges, root included, counting each node once. Nodes whose own size does not
// contribute are walked but add nothing.
//
// On cancellation it returns the sum so far with complete set to false.
func TreeSize(ctx context.Context, root *graph.Node) (size int64, complete bool) {
	if root == nil {
		return 0, true
	}
	visited := map[*graph.Node]bool{root: true}
	stack := []*graph.Node{root}
	steps := 0

	for len(stack) > 0 {
		if steps++; steps%checkEvery == 0 && ctx.Err() != nil {
			return size, false
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if own, contributes := n.OwnSize(); contributes {
			size += own
		}
		for _, c := range n.Dependencies {
			if !c.Type.IsHard || visited[c.Node] {
				continue
			}
			visited[c.Node] = true
			stack = append(stack, c.Node)
		}
	}
	return size, true
}

// HardClosure returns the nodes TreeSize would count, root first, in visit order.
func HardClosure(root *graph.Node) []*graph.Node {
	if root == nil {
		return nil
	}
	visited := map[*graph.Node]bool{root: true}
	out := []*graph.Node{}
	stack := []*graph.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		for _, c := range n.Dependencies {
			if c.Type.IsHard && !visited[c.Node] {
				visited[c.Node] = true
				stack = append(stack, c.Node)
			}
		}
	}
	return out
}
