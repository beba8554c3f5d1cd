// Package pkg provides the core libraries of refgraph, an incremental
// dependency-graph cache for large content repositories.
//
// # Overview
//
// refgraph discovers typed references between resources (container files,
// objects inside them, bundles), caches the discovered edges per discovery
// strategy, and derives a bidirectional graph answering "what does X use",
// "what uses X", "is X shipped" and "how much does X pull in".
//
// # Architecture
//
// Data flows leaves first:
//
//	source host (files, timestamps, content)
//	         ↓
//	[deps] resolvers and caches (incremental discovery, binary persistence)
//	         ↓
//	[pipeline] builder (unified graph with referencers)
//	         ↓
//	[analysis] packed reachability and tree size
//	         ↓
//	CLI, HTTP API, DOT/SVG export
//
// # Quick Start
//
//	reg := deps.NewRegistry()
//	assets.Register(reg)
//	bundles.Register(reg, "bundles.toml")
//
//	host, _ := fs.New("content")
//	store, _ := cache.NewFileStore(".refgraph/cache")
//	runner := pipeline.NewRunner(reg, deps.Env{Host: host}, store, cfg.Handlers(host), logger)
//	defer runner.Close()
//
//	res, err := runner.Execute(ctx, pipeline.FullRefresh())
//	n, _ := res.Snapshot.GetNode("scenes/level.asset.toml", graph.TypeFile)
//	size, _ := res.Snapshot.TreeSize(ctx, n)
//
// # Main Packages
//
//   - [graph]: keys, nodes, connections, dependency types, node handlers
//   - [deps]: resolver and cache contracts, activation lists, update tasks
//   - [deps/assets]: container-introspection cache
//   - [deps/bundles]: bundle-manifest cache
//   - [cache]: binary codec and cache file stores
//   - [pipeline]: session runner, graph builder, snapshots
//   - [analysis]: packed reachability, tree size, size worker
//   - [source] and [source/fs]: host contract and filesystem host
//   - [render/nodelink]: Graphviz export
//   - [config]: TOML and environment configuration
//   - [errors]: coded errors
//   - [observability]: update, cache and build hooks
//
// [graph]: github.com/matzehuels/refgraph/pkg/graph
// [deps]: github.com/matzehuels/refgraph/pkg/deps
// [deps/assets]: github.com/matzehuels/refgraph/pkg/deps/assets
// [deps/bundles]: github.com/matzehuels/refgraph/pkg/deps/bundles
// [cache]: github.com/matzehuels/refgraph/pkg/cache
// [pipeline]: github.com/matzehuels/refgraph/pkg/pipeline
// [analysis]: github.com/matzehuels/refgraph/pkg/analysis
// [source]: github.com/matzehuels/refgraph/pkg/source
// [source/fs]: github.com/matzehuels/refgraph/pkg/source/fs
// [render/nodelink]: github.com/matzehuels/refgraph/pkg/render/nodelink
// [config]: github.com/matzehuels/refgraph/pkg/config
// [errors]: github.com/matzehuels/refgraph/pkg/errors
// [observability]: github.com/matzehuels/refgraph/pkg/observability
package pkg
