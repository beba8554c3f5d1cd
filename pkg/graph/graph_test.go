package graph

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	rgerrors "github.com/matzehuels/refgraph/pkg/errors"
)

var (
	hardType     = DependencyType{ID: "object-reference", IsHard: true}
	indirectType = DependencyType{ID: "derived-from", IsIndirect: true}
)

func TestKey(t *testing.T) {
	k := K(TypeObject, "props/crate.asset.toml#body")
	if got := k.String(); got != "object:props/crate.asset.toml#body" {
		t.Errorf("String() = %q", got)
	}

	parsed, ok := ParseKey("file:a:b.png")
	if !ok || parsed != K(TypeFile, "a:b.png") {
		t.Errorf("ParseKey() = %v, %v", parsed, ok)
	}
	if _, ok := ParseKey("nocolon"); ok {
		t.Error("ParseKey(nocolon) should fail")
	}
	if !(Key{}).IsZero() {
		t.Error("zero key should report IsZero")
	}
	if K("a", "z").Compare(K("b", "a")) >= 0 {
		t.Error("keys should order by type first")
	}
}

func TestObjectID(t *testing.T) {
	id := ObjectID("levels/one.asset.toml", "door")
	container, local, ok := SplitObjectID(id)
	if !ok || container != "levels/one.asset.toml" || local != "door" {
		t.Errorf("SplitObjectID(%q) = %q, %q, %v", id, container, local, ok)
	}
	if _, _, ok := SplitObjectID("plain.png"); ok {
		t.Error("plain ids have no local part")
	}
	if got := BaseName(id); got != "one.asset.toml#door" {
		t.Errorf("BaseName() = %q", got)
	}
}

func TestFormatPath(t *testing.T) {
	tests := []struct {
		name string
		path []PathSegment
		want string
	}{
		{"Empty", nil, ""},
		{"Single", []PathSegment{{Name: "root", Kind: SegmentHierarchy}}, "root"},
		{
			"Full",
			[]PathSegment{
				{Name: "root", Kind: SegmentHierarchy},
				{Name: "mesh", Kind: SegmentComponent},
				{Name: "refs", Kind: SegmentProperty},
				{Name: "2", Kind: SegmentArrayElement},
			},
			"root/mesh.refs[2]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatPath(tt.path); got != tt.want {
				t.Errorf("FormatPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypeSet(t *testing.T) {
	s := NewTypeSet(hardType)
	if err := s.Add(indirectType); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(hardType); err != nil {
		t.Errorf("re-adding identical type should succeed: %v", err)
	}
	if err := s.Add(DependencyType{ID: hardType.ID}); err == nil {
		t.Error("conflicting metadata should be rejected")
	}
	if err := s.Add(DependencyType{}); err == nil {
		t.Error("empty id should be rejected")
	}

	if got, ok := s.Lookup("derived-from"); !ok || !got.IsIndirect {
		t.Errorf("Lookup(derived-from) = %+v, %v", got, ok)
	}
	neutral := s.Resolve("never-registered")
	if neutral.ID != "never-registered" || neutral.IsHard || neutral.IsIndirect {
		t.Errorf("Resolve(unregistered) = %+v, want neutral", neutral)
	}
	if got := s.IDs(); len(got) != 2 || got[0] != "derived-from" {
		t.Errorf("IDs() = %v", got)
	}
}

func TestGraphAddFirstSeenWins(t *testing.T) {
	g := New()
	first := NewNode(K(TypeFile, "a.png"), "first", nil)
	second := NewNode(K(TypeFile, "a.png"), "second", nil)

	if got, added := g.Add(first); !added || got != first {
		t.Fatal("first Add should insert")
	}
	if got, added := g.Add(second); added || got != first {
		t.Error("duplicate key should merge into the first node")
	}
	if g.NodeCount() != 1 {
		t.Errorf("NodeCount() = %d, want 1", g.NodeCount())
	}
}

func TestLinkReferencers(t *testing.T) {
	g := New()
	a, _ := g.Add(NewNode(K(TypeObject, "a"), "", nil))
	b, _ := g.Add(NewNode(K(TypeObject, "b"), "", nil))
	c, _ := g.Add(NewNode(K(TypeFile, "c"), "", nil))

	a.AddDependency(b, hardType, nil)
	a.AddDependency(c, indirectType, []PathSegment{{Name: "src", Kind: SegmentProperty}})
	b.AddDependency(c, hardType, nil)
	// Parallel edge of the same type must be mirrored twice.
	b.AddDependency(c, hardType, nil)

	g.LinkReferencers()
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.ReferencerCount() != 3 {
		t.Errorf("c referencers = %d, want 3", c.ReferencerCount())
	}
	if g.EdgeCount() != 4 {
		t.Errorf("EdgeCount() = %d, want 4", g.EdgeCount())
	}

	// Linking twice must not duplicate.
	g.LinkReferencers()
	if c.ReferencerCount() != 3 {
		t.Errorf("after relink c referencers = %d, want 3", c.ReferencerCount())
	}
}

func TestValidateDetectsAsymmetry(t *testing.T) {
	g := New()
	a, _ := g.Add(NewNode(K(TypeObject, "a"), "", nil))
	b, _ := g.Add(NewNode(K(TypeObject, "b"), "", nil))
	a.AddDependency(b, hardType, nil)

	if err := g.Validate(); !errors.Is(err, ErrAsymmetricEdge) {
		t.Errorf("Validate() = %v, want ErrAsymmetricEdge", err)
	}

	Mirror(a, a.Dependencies[0])
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() after Mirror = %v", err)
	}

	if !Unmirror(a, a.Dependencies[0]) {
		t.Fatal("Unmirror should find the entry")
	}
	if b.ReferencerCount() != 0 {
		t.Errorf("b referencers = %d, want 0", b.ReferencerCount())
	}

	stray := NewNode(K(TypeObject, "stray"), "", nil)
	a.AddDependency(stray, hardType, nil)
	if err := g.Validate(); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Validate() = %v, want ErrUnknownNode", err)
	}
}

func TestOwnSizeIsLazy(t *testing.T) {
	calls := 0
	n := NewNode(K(TypeFile, "a.png"), "", func(Key) (int64, bool) {
		calls++
		return 42, true
	})
	if calls != 0 {
		t.Fatal("size must not be computed at construction")
	}
	for range 3 {
		size, contributes := n.OwnSize()
		if size != 42 || !contributes {
			t.Errorf("OwnSize() = %d, %v", size, contributes)
		}
	}
	if calls != 1 {
		t.Errorf("sizer calls = %d, want 1", calls)
	}

	if size, contributes := NewNode(K(TypeFile, "b"), "", nil).OwnSize(); size != 0 || contributes {
		t.Error("nil sizer should yield 0, false")
	}
}

func TestHierarchySize(t *testing.T) {
	n := NewNode(K(TypeFile, "a"), "", nil)
	if _, ok := n.HierarchySize(); ok {
		t.Error("fresh node should have no hierarchy size")
	}
	n.SetHierarchySize(0)
	if v, ok := n.HierarchySize(); !ok || v != 0 {
		t.Errorf("HierarchySize() = %d, %v", v, ok)
	}
	n.ResetHierarchySize()
	if _, ok := n.HierarchySize(); ok {
		t.Error("reset should clear hierarchy size")
	}
}

func TestHandlerSet(t *testing.T) {
	hs := NewHandlerSet(&BasicHandler{
		Type:     TypeFile,
		NameFunc: BaseName,
		SizeFunc: func(string) (int64, bool) { return 10, true },
		PackFunc: func(id string) PackClass {
			if id == "root.scene" {
				return PackAlways
			}
			return PackDerived
		},
	})

	h, err := hs.Get(TypeFile)
	if err != nil {
		t.Fatalf("Get(file): %v", err)
	}
	if h.Name("dir/x.png") != "x.png" {
		t.Errorf("Name() = %q", h.Name("dir/x.png"))
	}
	if h.Packing("root.scene") != PackAlways {
		t.Error("root.scene should be PackAlways")
	}

	_, err = hs.Get("widget")
	if !rgerrors.Is(err, rgerrors.ErrCodeConfiguration) {
		t.Errorf("Get(unknown) = %v, want CONFIGURATION", err)
	}

	size, contributes := hs.Sizer()(K("widget", "x"))
	if size != 0 || contributes {
		t.Error("unregistered types should size to zero")
	}

	var basic BasicHandler
	if basic.Packing("x") != PackDerived || basic.Name("x") != "x" {
		t.Error("BasicHandler zero value should use defaults")
	}
}

func TestExport(t *testing.T) {
	g := New()
	a, _ := g.Add(NewNode(K(TypeObject, "s.asset.toml#a"), "a", func(Key) (int64, bool) { return 0, false }))
	f, _ := g.Add(NewNode(K(TypeFile, "s.asset.toml"), "", func(Key) (int64, bool) { return 100, true }))
	a.AddDependency(f, DependencyType{ID: "file-membership", IsHard: true}, nil)
	g.LinkReferencers()
	f.SetHierarchySize(100)

	data, err := MarshalGraph(g)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}
	var out Export
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Nodes) != 2 || len(out.Edges) != 1 {
		t.Fatalf("got %d nodes, %d edges", len(out.Nodes), len(out.Edges))
	}
	// Sorted by key: file < object.
	if out.Nodes[0].Type != TypeFile || out.Nodes[0].OwnSize != 100 {
		t.Errorf("first node = %+v", out.Nodes[0])
	}
	if out.Nodes[0].HierarchySize == nil || *out.Nodes[0].HierarchySize != 100 {
		t.Error("hierarchy size should be exported when known")
	}
	if out.Edges[0].From != "object:s.asset.toml#a" || out.Edges[0].Type != "file-membership" {
		t.Errorf("edge = %+v", out.Edges[0])
	}

	path := filepath.Join(t.TempDir(), "graph.json")
	if err := WriteGraphFile(g, path); err != nil {
		t.Fatalf("WriteGraphFile: %v", err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != string(data) {
		t.Error("file export should match MarshalGraph output")
	}
}

func TestClone(t *testing.T) {
	g := New()
	a, _ := g.Add(NewNode(K(TypeFile, "a"), "", nil))
	b, _ := g.Add(NewNode(K(TypeFile, "b"), "", nil))
	a.AddDependency(b, DependencyType{ID: "object-reference", IsHard: true}, nil)
	g.LinkReferencers()
	a.SetHierarchySize(7)

	c := g.Clone()
	if err := c.Validate(); err != nil {
		t.Fatalf("clone invalid: %v", err)
	}
	ca, _ := c.Node(a.Key)
	if ca == a {
		t.Fatal("Clone must create fresh nodes")
	}
	if ca.Dependencies[0].Node == b {
		t.Error("cloned edge points into the original graph")
	}
	if _, ok := ca.HierarchySize(); ok {
		t.Error("hierarchy size should not be copied")
	}

	cb, _ := c.Node(b.Key)
	cb.AddDependency(ca, DependencyType{ID: "x"}, nil)
	if len(b.Dependencies) != 0 {
		t.Error("mutating the clone changed the original")
	}
}
