package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/render"
)

func TestExportOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    exportOptions
		wantErr bool
	}{
		{"json", exportOptions{format: FormatJSON}, false},
		{"focused svg", exportOptions{format: FormatSVG, focus: "file:textures/a.png", depth: 1}, false},
		{"unknown format", exportOptions{format: "gif"}, true},
		{"bad focus", exportOptions{format: FormatDOT, focus: "textures/a.png"}, true},
		{"negative depth", exportOptions{format: FormatDOT, depth: -1}, true},
		{"png scaled", exportOptions{format: FormatPNG, scale: 3}, false},
		{"png zero scale", exportOptions{format: FormatPNG}, true},
		{"svg ignores scale", exportOptions{format: FormatSVG}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExportConverter(t *testing.T) {
	tests := []struct {
		name string
		opts exportOptions
		want render.Convert
	}{
		{"png", exportOptions{format: FormatPNG, scale: 4, background: "white"}, render.Convert{Format: render.PNG, Scale: 4, Background: "white"}},
		{"pdf drops scale", exportOptions{format: FormatPDF, scale: 4}, render.Convert{Format: render.PDF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.converter(); got != tt.want {
				t.Errorf("converter() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExportSnapshot(t *testing.T) {
	_, res := openTestSession(t)
	ctx := context.Background()

	data, err := exportSnapshot(ctx, res.Snapshot, exportOptions{format: FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	var exp graph.Export
	if err := json.Unmarshal(data, &exp); err != nil {
		t.Fatalf("json export: %v", err)
	}
	if len(exp.Nodes) != res.Stats.NodeCount || len(exp.Edges) != res.Stats.EdgeCount {
		t.Errorf("export has %d nodes, %d edges; stats say %d, %d",
			len(exp.Nodes), len(exp.Edges), res.Stats.NodeCount, res.Stats.EdgeCount)
	}

	data, err = exportSnapshot(ctx, res.Snapshot, exportOptions{format: FormatDOT, focus: "file:textures/old.png", depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	dot := string(data)
	if !strings.Contains(dot, "old.png") || strings.Contains(dot, "a.asset.toml") {
		t.Errorf("focused DOT should hold old.png and its bundle only:\n%s", dot)
	}

	_, err = exportSnapshot(ctx, res.Snapshot, exportOptions{format: FormatDOT, focus: "file:missing.png"})
	if !errors.Is(err, errors.ErrCodeNodeNotFound) {
		t.Errorf("missing focus error = %v, want NODE_NOT_FOUND", err)
	}

	data, err = exportSnapshot(ctx, res.Snapshot, exportOptions{format: FormatSVG})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") {
		t.Error("svg export has no <svg element")
	}
}
