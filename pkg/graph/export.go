package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Export is the node-link serialization of a graph snapshot.
type Export struct {
	Nodes []ExportNode `json:"nodes"`
	Edges []ExportEdge `json:"edges"`
}

// ExportNode is one serialized vertex.
type ExportNode struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name,omitempty"`
	Subtype       string `json:"subtype,omitempty"`
	OwnSize       int64  `json:"own_size,omitempty"`
	HierarchySize *int64 `json:"hierarchy_size,omitempty"`
}

// ExportEdge is one serialized connection. Endpoints use the "type:id" key form.
type ExportEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// ToExport converts g into its serialization form.
// Nodes are sorted by key for deterministic output; edges follow node order.
func ToExport(g *Graph) Export {
	nodes := g.SortedNodes()
	out := Export{
		Nodes: make([]ExportNode, 0, len(nodes)),
		Edges: make([]ExportEdge, 0, g.EdgeCount()),
	}
	for _, n := range nodes {
		en := ExportNode{ID: n.ID, Type: n.Type, Name: n.Name, Subtype: n.Subtype}
		en.OwnSize, _ = n.OwnSize()
		if hs, ok := n.HierarchySize(); ok {
			en.HierarchySize = &hs
		}
		out.Nodes = append(out.Nodes, en)
		for _, c := range n.Dependencies {
			out.Edges = append(out.Edges, ExportEdge{
				From: n.Key.String(),
				To:   c.Node.Key.String(),
				Type: c.Type.ID,
				Path: FormatPath(c.Path),
			})
		}
	}
	return out
}

// MarshalGraph converts a graph to indented JSON bytes.
func MarshalGraph(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes a graph as JSON to w.
func WriteGraph(g *Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToExport(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteGraphFile writes a graph as JSON to path.
func WriteGraphFile(g *Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(g, f)
}
