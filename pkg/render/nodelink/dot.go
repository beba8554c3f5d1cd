package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/refgraph/pkg/graph"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the node type and own size to labels and the dependency
	// type and path to edges.
	Detailed bool

	// Focus limits the diagram to nodes within Depth steps of this node,
	// following edges in both directions. Nil draws the whole graph.
	Focus *graph.Node
	Depth int

	// Packed nodes are drawn filled.
	Packed map[*graph.Node]bool
}

var shapes = map[string]string{
	graph.TypeFile:   "box",
	graph.TypeObject: "ellipse",
	graph.TypeBundle: "folder",
}

// ToDOT converts a graph to Graphviz DOT format. Nodes are emitted in key
// order so the output is deterministic.
func ToDOT(g *graph.Graph, opts Options) string {
	include := neighborhood(opts.Focus, opts.Depth)

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	nodes := g.SortedNodes()
	for _, n := range nodes {
		if include != nil && !include[n] {
			continue
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.Key.String(), strings.Join(fmtAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, n := range nodes {
		if include != nil && !include[n] {
			continue
		}
		for _, c := range n.Dependencies {
			if include != nil && !include[c.Node] {
				continue
			}
			fmt.Fprintf(&buf, "  %q -> %q [%s];\n", n.Key.String(), c.Node.Key.String(), strings.Join(fmtEdgeAttrs(c, opts.Detailed), ", "))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// neighborhood returns the nodes within depth undirected steps of focus, or
// nil when focus is nil.
func neighborhood(focus *graph.Node, depth int) map[*graph.Node]bool {
	if focus == nil {
		return nil
	}
	seen := map[*graph.Node]bool{focus: true}
	frontier := []*graph.Node{focus}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []*graph.Node
		for _, n := range frontier {
			for _, conns := range [][]graph.Connection{n.Dependencies, n.Referencers} {
				for _, c := range conns {
					if !seen[c.Node] {
						seen[c.Node] = true
						next = append(next, c.Node)
					}
				}
			}
		}
		frontier = next
	}
	return seen
}

func fmtLabel(n *graph.Node, detailed bool) string {
	if !detailed {
		return n.Name
	}
	size, contributes := n.OwnSize()
	parts := []string{n.Name, "type: " + n.Type}
	if n.Subtype != "" {
		parts = append(parts, "subtype: "+n.Subtype)
	}
	if contributes {
		parts = append(parts, fmt.Sprintf("size: %d", size))
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n *graph.Node, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, opts.Detailed))}
	if shape, ok := shapes[n.Type]; ok {
		attrs = append(attrs, "shape="+shape)
	}
	if opts.Packed[n] {
		attrs = append(attrs, "fillcolor=\"#c8e6c9\"")
	}
	if n == opts.Focus {
		attrs = append(attrs, "penwidth=3")
	}
	return attrs
}

func fmtEdgeAttrs(c graph.Connection, detailed bool) []string {
	var attrs []string
	if c.Type.Color != "" {
		attrs = append(attrs, fmt.Sprintf("color=%q", c.Type.Color))
	}
	switch {
	case c.Type.IsHard:
		attrs = append(attrs, "style=bold")
	case c.Type.IsIndirect:
		attrs = append(attrs, "style=dotted")
	default:
		attrs = append(attrs, "style=dashed")
	}
	if detailed {
		label := c.Type.ID
		if p := graph.FormatPath(c.Path); p != "" {
			label += "\n" + p
		}
		attrs = append(attrs, fmt.Sprintf("label=%q", label), "fontsize=10")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
