// Package cli implements the refgraph command-line interface.
//
// # Commands
//
//   - update: run a load, update, save and build cycle and print stats
//   - deps, refs: list the connections of one node
//   - packed, size: analytics answers for one node
//   - export: write the graph as JSON, DOT, SVG, PDF or PNG
//   - browse: walk the graph interactively
//   - watch: re-run incremental updates when content changes
//   - serve: read-only HTTP API with Prometheus metrics
//   - cache: inspect and clear cache files
//
// Every command that needs a graph runs one incremental cycle first; the
// --no-load, --no-update, --no-save and --fast flags shape that cycle.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// handed explicitly to the runner, caches and workers.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "refgraph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	root       string
	cacheDir   string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "refgraph tracks references between content resources",
		Long:         `refgraph incrementally discovers, caches and queries the dependency graph of a large content repository: which resources an asset uses, which use it, whether it ships, and how much it pulls in.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "config file (default ./refgraph.toml if present)")
	pf.StringVar(&c.root, "root", "", "content root (overrides config)")
	pf.StringVar(&c.cacheDir, "cache-dir", "", "cache directory (overrides config)")
	pf.BoolVar(&c.noCache, "no-cache", false, "do not read or write cache files")

	root.AddCommand(c.updateCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.refsCommand())
	root.AddCommand(c.packedCommand())
	root.AddCommand(c.sizeCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
