package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/pipeline"
)

const (
	testConfig = `root = "."
cache_dir = ".cache"

[packing]
roots = ["scenes/**"]
`
	testManifest = `
[[bundle]]
name = "art"
include = ["textures/*.png"]
`
	testScene = `
[[object]]
id = "root"
type = "scene"
refs = ["textures/a.png", "textures/b.png"]
`
	sceneRoot = "scenes/a.asset.toml#root"
)

// writeContent lays out a small content root and returns its directory.
func writeContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"refgraph.toml":       testConfig,
		"bundles.toml":        testManifest,
		"scenes/a.asset.toml": testScene,
		"textures/a.png":      "aaaa",
		"textures/b.png":      "bbbbbbbb",
		"textures/old.png":    "o",
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestCLI(t *testing.T) (*CLI, string) {
	t.Helper()
	dir := writeContent(t)
	c := New(io.Discard, LogInfo)
	c.configPath = filepath.Join(dir, "refgraph.toml")
	return c, dir
}

func openTestSession(t *testing.T) (*session, *pipeline.Result) {
	t.Helper()
	c, _ := newTestCLI(t)
	s, err := c.openSession()
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	t.Cleanup(s.Close)
	res, err := s.runner.Execute(context.Background(), cycleFlags{}.options(s.cfg))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return s, res
}

func runCommand(t *testing.T, c *CLI, args ...string) error {
	t.Helper()
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestParseNodeArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    graph.Key
		wantErr bool
	}{
		{"two args", []string{"file", "textures/a.png"}, graph.K("file", "textures/a.png"), false},
		{"key form", []string{"object:" + sceneRoot}, graph.K("object", sceneRoot), false},
		{"missing colon", []string{"textures/a.png"}, graph.Key{}, true},
		{"no args", nil, graph.Key{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNodeArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseNodeArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseNodeArgs() = %v, want %v", got, tt.want)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("error code = %v, want INVALID_INPUT", errors.GetCode(err))
			}
		})
	}
}

func TestCycleFlagsOptions(t *testing.T) {
	c, _ := newTestCLI(t)
	cfg, err := c.loadConfig()
	if err != nil {
		t.Fatal(err)
	}

	opts := cycleFlags{}.options(cfg)
	if !opts.Load || !opts.Update || !opts.Save || opts.Fast {
		t.Errorf("default options = %+v, want load/update/save without fast", opts)
	}

	opts = cycleFlags{noLoad: true, noUpdate: true, noSave: true, fast: true}.options(cfg)
	if opts.Load || opts.Update || opts.Save || !opts.Fast {
		t.Errorf("negated options = %+v", opts)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	c, dir := newTestCLI(t)
	other := t.TempDir()
	c.root = other
	c.cacheDir = filepath.Join(dir, "elsewhere")

	cfg, err := c.loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != other {
		t.Errorf("Root = %q, want %q", cfg.Root, other)
	}
	if cfg.CacheDir != c.cacheDir {
		t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, c.cacheDir)
	}
}

func TestOpenStore(t *testing.T) {
	c, dir := newTestCLI(t)
	cfg, err := c.loadConfig()
	if err != nil {
		t.Fatal(err)
	}

	store, err := c.openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	fs, ok := store.(*cache.FileStore)
	if !ok {
		t.Fatalf("store = %T, want *cache.FileStore", store)
	}
	if want := filepath.Join(dir, ".cache"); fs.Dir() != want {
		t.Errorf("Dir() = %q, want %q", fs.Dir(), want)
	}

	c.noCache = true
	store, err = c.openStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*cache.NullStore); !ok {
		t.Errorf("store = %T, want *cache.NullStore with --no-cache", store)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"update", []string{"update"}, ""},
		{"update fast", []string{"update", "--fast"}, ""},
		{"deps", []string{"deps", "object:" + sceneRoot}, ""},
		{"refs", []string{"refs", "file", "textures/a.png"}, ""},
		{"packed", []string{"packed", "file", "textures/b.png"}, ""},
		{"size", []string{"size", "object", sceneRoot}, ""},
		{"missing node", []string{"deps", "file", "textures/none.png"}, errors.ErrCodeNodeNotFound},
		{"unknown type", []string{"deps", "sound", "a.wav"}, errors.ErrCodeConfiguration},
		{"bad export format", []string{"export", "-f", "gif"}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCLI(t)
			err := runCommand(t, c, tt.args...)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("%v: %v", tt.args, err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("%v: error = %v, want %s", tt.args, err, tt.code)
			}
		})
	}
}

func TestExportCommandWritesFile(t *testing.T) {
	c, dir := newTestCLI(t)
	out := filepath.Join(dir, "graph.dot")
	if err := runCommand(t, c, "export", "-f", "dot", "--packed", "-o", out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "digraph") {
		t.Errorf("export output does not start with digraph:\n%s", data)
	}
}

func TestCacheCommands(t *testing.T) {
	c, dir := newTestCLI(t)
	cacheDir := filepath.Join(dir, ".cache")

	if err := runCommand(t, c, "cache", "list"); err != nil {
		t.Fatalf("list before update: %v", err)
	}
	if err := runCommand(t, c, "update"); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("update wrote no cache files")
	}
	if err := runCommand(t, c, "cache", "list"); err != nil {
		t.Fatal(err)
	}
	if err := runCommand(t, c, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	entries, err = os.ReadDir(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), cache.Extension) {
			t.Errorf("cache clear left %s", e.Name())
		}
	}
}

func TestCachePath(t *testing.T) {
	c, dir := newTestCLI(t)
	got, err := c.resolvedCacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, ".cache"); got != want {
		t.Errorf("resolvedCacheDir() = %q, want %q", got, want)
	}
}
