// Package config loads refgraph settings from a TOML file, a .env file and
// REFGRAPH_* environment variables, in increasing order of precedence.
//
// A minimal refgraph.toml:
//
//	root = "."
//	cache_dir = ".refgraph/cache"
//
//	[update]
//	batch_size = 32
//	cleanup_interval = 200
//
//	[[activate]]
//	cache = "assets"
//	resolver = "object-reference"
//
//	[packing]
//	roots = ["scenes/**"]
//	excluded = ["editor/**"]
//
//	[bundles]
//	manifest = "bundles.toml"
//
// Relative paths in the file are resolved against the file's directory;
// a relative cache_dir is resolved against root.
package config

import (
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/errors"
)

const (
	// AppName names the XDG cache subdirectory.
	AppName = "refgraph"

	// DefaultFile is read from the working directory when no path is given.
	DefaultFile = "refgraph.toml"

	// EnvFile is loaded from the config file's directory. Existing
	// environment variables win over its entries.
	EnvFile = ".env"
)

// Environment overrides.
const (
	EnvRoot            = "REFGRAPH_ROOT"
	EnvCacheDir        = "REFGRAPH_CACHE_DIR"
	EnvBatchSize       = "REFGRAPH_BATCH_SIZE"
	EnvCleanupInterval = "REFGRAPH_CLEANUP_INTERVAL"
)

// Config is the complete refgraph configuration.
type Config struct {
	Root     string            `toml:"root"`
	CacheDir string            `toml:"cache_dir"`
	Update   UpdateConfig      `toml:"update"`
	Activate []deps.Activation `toml:"activate"`
	Packing  PackingConfig     `toml:"packing"`
	Bundles  BundlesConfig     `toml:"bundles"`

	// File is the config file that was read, empty if none.
	File string `toml:"-"`
}

// UpdateConfig tunes the incremental update.
type UpdateConfig struct {
	BatchSize       int `toml:"batch_size"`
	CleanupInterval int `toml:"cleanup_interval"`
}

// PackingConfig classifies resources for packed reachability. Roots are
// always packed; excluded resources are never packed unless also a root.
type PackingConfig struct {
	Roots    []string `toml:"roots"`
	Excluded []string `toml:"excluded"`
}

// BundlesConfig locates the bundle manifest inside the content root.
type BundlesConfig struct {
	Manifest string `toml:"manifest"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Root: ".",
		Update: UpdateConfig{
			BatchSize:       deps.DefaultBatchSize,
			CleanupInterval: deps.DefaultCleanupInterval,
		},
		Bundles: BundlesConfig{Manifest: "bundles.toml"},
	}
}

// Load reads the config file at path, then .env, then the environment.
// An empty path tries DefaultFile and tolerates its absence; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	if _, err := os.Stat(path); err == nil {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	} else if explicit {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read config")
	}

	_ = godotenv.Load(filepath.Join(filepath.Dir(path), EnvFile))
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data on top of the defaults without consulting the
// environment. Relative paths stay as written.
func Parse(data string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "parse config")
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) decodeFile(file string) error {
	md, err := toml.DecodeFile(file, c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, err, "parse %s", file)
	}
	if err := checkUndecoded(md); err != nil {
		return err
	}
	c.File = file
	dir := filepath.Dir(file)
	if !filepath.IsAbs(c.Root) {
		c.Root = filepath.Join(dir, c.Root)
	}
	return nil
}

func checkUndecoded(md toml.MetaData) error {
	if keys := md.Undecoded(); len(keys) > 0 {
		return errors.New(errors.ErrCodeConfiguration, "unknown config key %q", keys[0].String())
	}
	return nil
}

// ApplyEnv overrides fields from REFGRAPH_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRoot); ok && v != "" {
		c.Root = v
	}
	if v, ok := lookup(EnvCacheDir); ok && v != "" {
		c.CacheDir = v
	}
	for _, e := range []struct {
		name string
		dst  *int
	}{
		{EnvBatchSize, &c.Update.BatchSize},
		{EnvCleanupInterval, &c.Update.CleanupInterval},
	} {
		v, ok := lookup(e.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfiguration, err, "%s", e.name)
		}
		*e.dst = n
	}
	return nil
}

// Validate checks numeric ranges and glob syntax.
func (c *Config) Validate() error {
	if c.Update.BatchSize < 0 {
		return errors.New(errors.ErrCodeConfiguration, "update.batch_size must not be negative")
	}
	if c.Update.CleanupInterval < 0 {
		return errors.New(errors.ErrCodeConfiguration, "update.cleanup_interval must not be negative")
	}
	for _, p := range append(append([]string{}, c.Packing.Roots...), c.Packing.Excluded...) {
		if err := validGlob(p); err != nil {
			return err
		}
	}
	for _, a := range c.Activate {
		if a.Cache == "" {
			return errors.New(errors.ErrCodeConfiguration, "activation without cache")
		}
	}
	return nil
}

func validGlob(pattern string) error {
	if pattern == "" {
		return errors.New(errors.ErrCodeConfiguration, "empty packing pattern")
	}
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, ""); err != nil {
			return errors.Wrap(errors.ErrCodeConfiguration, err, "packing pattern %q", pattern)
		}
	}
	return nil
}

// Settings returns the update settings with defaults applied.
func (c *Config) Settings() deps.UpdateSettings {
	return deps.UpdateSettings{
		BatchSize:       c.Update.BatchSize,
		CleanupInterval: c.Update.CleanupInterval,
	}.WithDefaults()
}

// ResolvedCacheDir returns the cache directory: CacheDir resolved against
// Root, or a per-root directory under the XDG cache home.
func (c *Config) ResolvedCacheDir() (string, error) {
	if c.CacheDir != "" {
		if filepath.IsAbs(c.CacheDir) {
			return c.CacheDir, nil
		}
		return filepath.Join(c.Root, c.CacheDir), nil
	}
	base, err := XDGCacheDir()
	if err != nil {
		return "", err
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, cache.Hash([]byte(root))[:16]), nil
}

// XDGCacheDir returns $XDG_CACHE_HOME/refgraph or ~/.cache/refgraph.
func XDGCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}
