// Package deps defines the plugin contracts of the dependency engine and the
// machinery shared by every cache.
//
// # Resolvers and Caches
//
// A [Resolver] is a discovery strategy. It has a stable id and declares the
// [graph.DependencyType] values it can emit. The concrete discovery method is
// defined by the cache that hosts it, because each cache feeds its resolvers a
// different kind of input.
//
// A [Cache] owns storage and the incremental update lifecycle for a group of
// resolvers that share a discovery mechanism:
//
//   - [Cache.CanUpdate] asks the host whether a rebuild is currently allowed
//   - [Cache.Update] returns a resumable [Task] that performs discovery
//   - [Cache.AddExistingNodes] seeds the graph builder
//   - [Cache.GetDependenciesForID] returns edges of active resolvers only
//   - [Cache.Load] / [Cache.Save] persist state through a [cache.Store]
//   - [Cache.InitLookup] rebuilds in-memory indexes after Load
//
// # Registry
//
// Caches and resolvers are wired explicitly. The embedding application
// registers factories at startup:
//
//	reg := deps.NewRegistry()
//	reg.RegisterCache("assets", assets.New)
//	reg.RegisterResolver("assets", "object-reference", assets.NewObjectReferenceResolver)
//
// [Registry.New] instantiates a cache with its registered resolvers.
//
// # Activation
//
// An [ActiveSet] records which cache, resolver and dependency-type
// combinations are enabled. Edges of inactive resolvers stay cached but are
// invisible to the graph. An empty activation list enables everything.
//
// # Tasks
//
// Updates are explicit state machines. [Task.Step] performs one batch of work
// and returns at a batch boundary; [Run] drives a set of tasks and observes
// cancellation between steps. A task stages its results and only publishes
// them on [Task.Commit], so an aborted run leaves the cache untouched.
package deps
