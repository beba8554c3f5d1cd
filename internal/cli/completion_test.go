package cli

import (
	"slices"
	"testing"

	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/source"
)

func TestNodeCompletions(t *testing.T) {
	resources := []source.Resource{
		{ID: "scenes/a.asset.toml"},
		{ID: "textures/a.png"},
		{ID: "textures/b.png"},
	}
	tests := []struct {
		name       string
		args       []string
		toComplete string
		want       []string
		noSpace    bool
	}{
		{"types", nil, "", []string{"file", "object", "bundle"}, false},
		{"type prefix", nil, "o", []string{"object"}, false},
		{"file id", []string{"file"}, "tex", []string{"textures/a.png", "textures/b.png"}, false},
		{"keyed file", nil, "file:textures/b", []string{"file:textures/b.png"}, false},
		{"object document", []string{"object"}, "", []string{"scenes/a.asset.toml#"}, true},
		{"keyed object", nil, "object:scenes/", []string{"object:scenes/a.asset.toml#"}, true},
		{"object local id", []string{"object"}, "scenes/a.asset.toml#r", nil, true},
		{"bundle", []string{"bundle"}, "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dir := nodeCompletions(resources, tt.args, tt.toComplete)
			if !slices.Equal(got, tt.want) {
				t.Errorf("candidates = %v, want %v", got, tt.want)
			}
			if dir&cobra.ShellCompDirectiveNoFileComp == 0 {
				t.Error("file completion should be off")
			}
			if noSpace := dir&cobra.ShellCompDirectiveNoSpace != 0; noSpace != tt.noSpace {
				t.Errorf("NoSpace = %v, want %v", noSpace, tt.noSpace)
			}
		})
	}
}

func TestCompleteNodeArgsListsContent(t *testing.T) {
	c, _ := newTestCLI(t)

	got, _ := c.completeNodeArgs(&cobra.Command{}, []string{"file"}, "textures/")
	want := []string{"textures/a.png", "textures/b.png", "textures/old.png"}
	if !slices.Equal(got, want) {
		t.Errorf("candidates = %v, want %v", got, want)
	}

	if got, _ := c.completeNodeArgs(&cobra.Command{}, []string{"file", "x"}, ""); got != nil {
		t.Errorf("third argument candidates = %v, want none", got)
	}
}
