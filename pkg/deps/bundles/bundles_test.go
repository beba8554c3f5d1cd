package bundles

import (
	"bytes"
	"context"
	"slices"
	"testing"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/source"
)

const manifest = `
[[bundle]]
name = "core"
include = ["scenes/**", "textures/*.png"]
exclude = ["textures/debug.png"]

[[bundle]]
name = "empty"
include = ["nothing/**"]
`

type countingResolver struct {
	ManifestResolver
	calls int
}

func (r *countingResolver) Resolve(m *Manifest, listed []source.Resource) map[string][]graph.Dependency {
	r.calls++
	return r.ManifestResolver.Resolve(m, listed)
}

func setup(t *testing.T) (*source.Memory, *Cache, *countingResolver, *deps.ActiveSet) {
	t.Helper()
	h := source.NewMemory()
	h.PutRaw(DefaultManifest, 10, []byte(manifest))
	h.Put("scenes/a.asset.toml", 10)
	h.Put("scenes/sub/b.asset.toml", 10)
	h.Put("textures/a.png", 10)
	h.Put("textures/debug.png", 10)
	h.Put("other/c.png", 10)

	r := &countingResolver{ManifestResolver: NewGroupMembershipResolver().(ManifestResolver)}
	c, err := Factory("")(deps.Env{Host: h}, []deps.Resolver{r})
	if err != nil {
		t.Fatal(err)
	}
	active, err := deps.NewActiveSet([]deps.Cache{c}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return h, c.(*Cache), r, active
}

func update(t *testing.T, c *Cache, active *deps.ActiveSet) deps.Task {
	t.Helper()
	task := c.Update(deps.UpdateSettings{}, active, true)
	if err := deps.Run(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	task.Commit()
	return task
}

func targets(ds []graph.Dependency) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.Target.ID)
	}
	return out
}

func TestGroupMembership(t *testing.T) {
	_, c, _, active := setup(t)
	update(t, c, active)

	if got := c.Bundles(); !slices.Equal(got, []string{"core", "empty"}) {
		t.Errorf("Bundles = %v", got)
	}
	got := targets(c.GetDependenciesForID(graph.K(graph.TypeBundle, "core")))
	want := []string{"scenes/a.asset.toml", "scenes/sub/b.asset.toml", "textures/a.png"}
	if !slices.Equal(got, want) {
		t.Errorf("core members = %v, want %v", got, want)
	}
	if got := c.GetDependenciesForID(graph.K(graph.TypeBundle, "empty")); got != nil {
		t.Errorf("empty bundle = %v", got)
	}
	if got := c.GetDependenciesForID(graph.K(graph.TypeFile, "core")); got != nil {
		t.Error("non-bundle keys have no edges here")
	}
	if nodes := c.AddExistingNodes(nil); len(nodes) != 2 || nodes[0].Type != graph.TypeBundle {
		t.Errorf("AddExistingNodes = %v", nodes)
	}
}

func TestRediscoveryTriggers(t *testing.T) {
	h, c, r, active := setup(t)
	update(t, c, active)

	update(t, c, active)
	if r.calls != 1 {
		t.Fatalf("unchanged update resolved again (%d calls)", r.calls)
	}

	// Touching a member does not change the listing.
	h.Touch("textures/a.png", 99)
	update(t, c, active)
	if r.calls != 1 {
		t.Errorf("member timestamp change triggered resolve")
	}

	h.Put("scenes/new.asset.toml", 1)
	update(t, c, active)
	if r.calls != 2 {
		t.Errorf("listing change did not trigger resolve")
	}
	if n := len(c.GetDependenciesForID(graph.K(graph.TypeBundle, "core"))); n != 4 {
		t.Errorf("core has %d members, want 4", n)
	}

	h.Touch(DefaultManifest, 20)
	update(t, c, active)
	if r.calls != 3 {
		t.Errorf("manifest change did not trigger resolve")
	}
}

func TestBadManifestKeepsBundles(t *testing.T) {
	h, c, _, active := setup(t)
	update(t, c, active)

	h.PutRaw(DefaultManifest, 30, []byte("[[bundle]]\ninclude = ['x']\n"))
	task := update(t, c, active)
	if task.Stats().Failed != 1 {
		t.Errorf("Failed = %d", task.Stats().Failed)
	}
	if len(c.Bundles()) != 2 {
		t.Errorf("bundles after bad manifest = %v", c.Bundles())
	}
}

func TestMissingManifest(t *testing.T) {
	h, c, _, active := setup(t)
	h.Remove(DefaultManifest)
	update(t, c, active)
	if len(c.Bundles()) != 0 {
		t.Errorf("Bundles = %v", c.Bundles())
	}
}

// pinnedResolver links every bundle to the manifest itself.
type pinnedResolver struct{}

func (pinnedResolver) ID() string { return "pinned" }
func (pinnedResolver) DependencyTypes() []graph.DependencyType {
	return []graph.DependencyType{{ID: "pinned"}}
}
func (pinnedResolver) Resolve(m *Manifest, _ []source.Resource) map[string][]graph.Dependency {
	out := make(map[string][]graph.Dependency)
	for _, b := range m.Bundles {
		out[b.Name] = []graph.Dependency{{Target: graph.K(graph.TypeFile, DefaultManifest), TypeID: "pinned"}}
	}
	return out
}

func TestInactiveResolverHidden(t *testing.T) {
	h, _, _, _ := setup(t)
	c, err := Factory("")(deps.Env{Host: h}, []deps.Resolver{NewGroupMembershipResolver(), pinnedResolver{}})
	if err != nil {
		t.Fatal(err)
	}
	all, _ := deps.NewActiveSet([]deps.Cache{c}, nil)
	update(t, c.(*Cache), all)

	core := graph.K(graph.TypeBundle, "core")
	if n := len(c.GetDependenciesForID(core)); n != 4 {
		t.Fatalf("core has %d edges, want 4", n)
	}

	only := mustActive(t, c, "pinned")
	task := c.Update(deps.UpdateSettings{}, only, false)
	task.Commit()
	got := c.GetDependenciesForID(core)
	if len(got) != 1 || got[0].TypeID != "pinned" {
		t.Errorf("got %+v, want only pinned edge", got)
	}

	// Re-running only the pinned resolver keeps group-membership edges cached.
	h.Touch(DefaultManifest, 77)
	update(t, c.(*Cache), only)
	task = c.Update(deps.UpdateSettings{}, all, false)
	task.Commit()
	if n := len(c.GetDependenciesForID(core)); n != 4 {
		t.Errorf("after reactivation core has %d edges, want 4", n)
	}
}

func mustActive(t *testing.T, c deps.Cache, resolver string) *deps.ActiveSet {
	t.Helper()
	a, err := deps.NewActiveSet([]deps.Cache{c}, []deps.Activation{{Cache: ID, Resolver: resolver}})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestPersistence(t *testing.T) {
	h, c, _, active := setup(t)
	update(t, c, active)

	ctx := context.Background()
	store := cache.NewMemoryStore()
	if err := c.Save(ctx, store); err != nil {
		t.Fatal(err)
	}
	data, _, _ := store.Read(ctx, FileName)
	st, err := decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(encode(st), data) {
		t.Error("encode(decode(bytes)) != bytes")
	}

	r2 := &countingResolver{ManifestResolver: NewGroupMembershipResolver().(ManifestResolver)}
	c2, _ := Factory("")(deps.Env{Host: h}, []deps.Resolver{r2})
	if err := c2.Load(ctx, store); err != nil {
		t.Fatal(err)
	}
	update(t, c2.(*Cache), active)
	if r2.calls != 0 {
		t.Error("loaded cache should not resolve an unchanged manifest")
	}

	store.Write(ctx, FileName, data[:len(data)-1])
	c3, _ := Factory("")(deps.Env{Host: h}, []deps.Resolver{r2})
	if err := c3.Load(ctx, store); err != nil || len(c3.(*Cache).Bundles()) != 0 {
		t.Errorf("truncated load = %v, %v", err, c3.(*Cache).Bundles())
	}
}

func TestAbortKeepsState(t *testing.T) {
	h, c, _, active := setup(t)
	update(t, c, active)
	before := encode(c.st)

	h.Touch(DefaultManifest, 50)
	h.Put("scenes/late.asset.toml", 1)
	ctx, cancel := context.WithCancel(context.Background())
	task := c.Update(deps.UpdateSettings{}, active, true)
	task.Step(ctx)
	cancel()
	if err := deps.Run(ctx, task); !errors.IsAborted(err) {
		t.Fatalf("err = %v", err)
	}
	task.Commit()
	if !bytes.Equal(encode(c.st), before) {
		t.Error("aborted update changed state")
	}
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name, raw string
	}{
		{"syntax", "[[bundle"},
		{"missing name", "[[bundle]]\ninclude=['a']"},
		{"duplicate", "[[bundle]]\nname='a'\n[[bundle]]\nname='a'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.raw)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegister(t *testing.T) {
	reg := deps.NewRegistry()
	if err := Register(reg, "cfg/bundles.toml"); err != nil {
		t.Fatal(err)
	}
	c, err := reg.New(deps.Env{Host: source.NewMemory()}, ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.(*Cache).Manifest() != "cfg/bundles.toml" {
		t.Errorf("Manifest = %q", c.(*Cache).Manifest())
	}
}
