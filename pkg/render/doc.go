// Package render holds output helpers shared by the graph renderers.
//
// [Convert] turns any SVG into PDF or PNG using the external rsvg-convert
// tool (from librsvg):
//
//	dot := nodelink.ToDOT(snapshot.Graph, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := render.Convert{Format: render.PNG, Scale: 2}.Run(ctx, svg)
//
// The [nodelink] subpackage draws the reference graph as a Graphviz
// node-link diagram.
//
// [nodelink]: github.com/matzehuels/refgraph/pkg/render/nodelink
package render
