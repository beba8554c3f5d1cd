// Package graph provides the in-memory reference graph built from cached
// dependency data.
//
// # Core Types
//
//   - [Key]: resource identity (opaque id plus node type tag)
//   - [Node]: canonical vertex with outgoing [Node.Dependencies] and incoming
//     [Node.Referencers]
//   - [Connection]: typed directed edge instance with the [PathSegment] trail
//     describing where the edge was found
//   - [Dependency]: the pre-graph edge record emitted by resolvers and stored in caches
//   - [DependencyType], [TypeSet]: per-edge-category metadata (hard, indirect, color)
//   - [NodeHandler], [HandlerSet]: per-node-type naming, sizing and packing policy
//
// # Invariants
//
// A [Graph] holds at most one [Node] per [Key]. Every forward connection A→B of
// type T has exactly one mirrored entry B←A of type T in B.Referencers once
// [Graph.LinkReferencers] has run; [Graph.Validate] checks this.
//
// Graphs are derived state. They are rebuilt from cache contents on every build
// pass and are never persisted; only the per-cache dependency stores are.
//
// # Serialization
//
// Snapshots can be exported in a node-link JSON format for other tools:
//
//	{
//	  "nodes": [{"id": "a.png", "type": "file"}],
//	  "edges": [{"from": "file:x", "to": "file:a.png", "type": "object-reference"}]
//	}
//
// # Concurrency
//
// A built graph is read-only for consumers. The only field written after a build
// is the derived hierarchy size, which is stored atomically by its single writer.
package graph
