// Package nodelink renders reference graphs as node-link diagrams.
//
// # Usage
//
// Convert a built graph to DOT, then render to SVG in-process:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Large graphs are usually drawn around one node:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Focus: n, Depth: 2})
//
// # Styling
//
// Edges take their color from the dependency type. Hard edges are drawn
// solid and bold, indirect edges dotted, the rest dashed. Node shapes follow
// the node type: files are boxes, objects ellipses, bundles folders. Nodes in
// Options.Packed are filled.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for SVG rendering. PDF and
// PNG conversion goes through [render.Convert].
//
// [render.Convert]: github.com/matzehuels/refgraph/pkg/render.Convert
package nodelink
