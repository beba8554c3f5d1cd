package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/config"
	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/deps/assets"
	"github.com/matzehuels/refgraph/pkg/deps/bundles"
	"github.com/matzehuels/refgraph/pkg/pipeline"
	"github.com/matzehuels/refgraph/pkg/source/fs"
)

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the config file and applies global flag overrides.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.root != "" {
		cfg.Root = c.root
	}
	if c.cacheDir != "" {
		cfg.CacheDir = c.cacheDir
	}
	return cfg, nil
}

// newRegistry wires every cache and resolver refgraph ships with.
func newRegistry(cfg *config.Config) (*deps.Registry, error) {
	reg := deps.NewRegistry()
	if err := assets.Register(reg); err != nil {
		return nil, err
	}
	if err := bundles.Register(reg, cfg.Bundles.Manifest); err != nil {
		return nil, err
	}
	return reg, nil
}

// =============================================================================
// Session
// =============================================================================

// session bundles everything one command needs to build and query a graph.
type session struct {
	cfg    *config.Config
	host   *fs.Host
	store  cache.Store
	runner *pipeline.Runner
}

func (c *CLI) openSession() (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	host, err := fs.New(cfg.Root)
	if err != nil {
		return nil, err
	}
	store, err := c.openStore(cfg)
	if err != nil {
		return nil, err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	env := deps.Env{Host: host, Logger: c.Logger}
	return &session{
		cfg:    cfg,
		host:   host,
		store:  store,
		runner: pipeline.NewRunner(reg, env, store, cfg.Handlers(host), c.Logger),
	}, nil
}

func (c *CLI) openStore(cfg *config.Config) (cache.Store, error) {
	if c.noCache {
		return cache.NewNullStore(), nil
	}
	dir, err := cfg.ResolvedCacheDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching disabled", "err", err)
		return cache.NewNullStore(), nil
	}
	return cache.NewFileStore(dir)
}

func (s *session) Close() {
	s.runner.Close()
}

// =============================================================================
// Cycle Flags
// =============================================================================

// cycleFlags shape the incremental cycle a command runs before answering.
type cycleFlags struct {
	noLoad   bool
	noUpdate bool
	noSave   bool
	fast     bool
}

func (f *cycleFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.noLoad, "no-load", false, "ignore cache files")
	fl.BoolVar(&f.noUpdate, "no-update", false, "skip discovery and use cached edges only")
	fl.BoolVar(&f.noSave, "no-save", false, "do not write cache files")
	fl.BoolVar(&f.fast, "fast", false, "re-derive only the activated caches on the previous graph")
}

func (f cycleFlags) options(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Active:   cfg.Activate,
		Load:     !f.noLoad,
		Update:   !f.noUpdate,
		Save:     !f.noSave,
		Fast:     f.fast,
		Settings: cfg.Settings(),
	}
}

// run executes one cycle under a spinner.
func (s *session) run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	spinner := newSpinnerWithContext(ctx, "Updating reference graph...")
	spinner.Start()
	res, err := s.runner.Execute(ctx, opts)
	spinner.Stop()
	return res, err
}
