package graph_test

import (
	"fmt"

	"github.com/matzehuels/refgraph/pkg/graph"
)

func ExampleGraph_LinkReferencers() {
	ref := graph.DependencyType{ID: "object-reference", IsHard: true}

	g := graph.New()
	scene, _ := g.Add(graph.NewNode(graph.K(graph.TypeObject, "level.asset.toml#root"), "root", nil))
	tex, _ := g.Add(graph.NewNode(graph.K(graph.TypeFile, "textures/wall.png"), "", nil))

	scene.AddDependency(tex, ref, []graph.PathSegment{
		{Name: "root", Kind: graph.SegmentComponent},
		{Name: "refs", Kind: graph.SegmentProperty},
		{Name: "0", Kind: graph.SegmentArrayElement},
	})
	g.LinkReferencers()

	for _, c := range tex.Referencers {
		fmt.Println(c.Node.Key, c.Type.ID, graph.FormatPath(c.Path))
	}
	fmt.Println("valid:", g.Validate() == nil)
	// Output:
	// object:level.asset.toml#root object-reference root.refs[0]
	// valid: true
}
