// Package analysis computes derived answers over a built reference graph.
//
// # Packed Reachability
//
// A node is packed when its handler classifies it [graph.PackAlways], never
// when it is classified [graph.PackNever], and otherwise when any referencer
// reaching it through a non-indirect edge is packed. [Packer] answers single
// queries with a memoized reverse search; [PackedSet] computes every packed
// node with one forward sweep from the roots. Both agree on every graph.
//
// Cycles are broken by treating a node whose search is still in progress as
// not yet proven packed. A negative answer that depended on such a node is not
// memoized, so it cannot poison later queries from a different entry point.
//
// # Tree Size
//
// [TreeSize] sums [graph.Node.OwnSize] over the nodes reachable from a root via
// hard edges. A visited set guarantees each node counts at most once, which
// keeps the walk finite on cycles and exact on diamonds.
//
// # Background Worker
//
// [SizeWorker] computes tree sizes off the caller's goroutine and stores them
// with [graph.Node.SetHierarchySize]. It is the only writer of that field.
// Requests are served newest first. [SizeWorker.Restart] stops the running
// worker and drops its queue before starting over, so results computed for a
// previous graph are never written into a new one.
package analysis
