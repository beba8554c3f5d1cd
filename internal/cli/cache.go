package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear reference cache files",
	}

	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// resolvedCacheDir returns the cache directory for the current config and
// flags.
func (c *CLI) resolvedCacheDir() (string, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return "", err
	}
	dir, err := cfg.ResolvedCacheDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeConfiguration, err, "resolve cache dir")
	}
	return dir, nil
}

// existingStore opens the cache directory without creating it. ok is false
// when there is nothing on disk yet.
func (c *CLI) existingStore() (store *cache.FileStore, ok bool, err error) {
	dir, err := c.resolvedCacheDir()
	if err != nil {
		return nil, false, err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, false, nil
	}
	store, err = cache.NewFileStore(dir)
	return store, err == nil, err
}

// cacheListCommand creates the "cache list" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cache files and their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok, err := c.existingStore()
			if err != nil {
				return err
			}
			if !ok {
				printInfo("Cache is empty")
				return nil
			}
			names, err := store.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				printInfo("Cache is empty")
				return nil
			}
			for _, name := range names {
				var size int64
				if info, err := os.Stat(store.Path(name)); err == nil {
					size = info.Size()
				}
				printKeyValue(name, formatBytes(size))
			}
			printDetail("Directory: %s", store.Dir())
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all cache files for the current root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok, err := c.existingStore()
			if err != nil {
				return err
			}
			if !ok {
				printInfo("Cache is empty")
				return nil
			}
			names, err := store.List()
			if err != nil {
				return err
			}

			count := 0
			for _, name := range names {
				if err := store.Delete(cmd.Context(), name); err != nil {
					c.Logger.Warn("delete cache file", "file", name, "err", err)
					continue
				}
				count++
			}

			printSuccess("Cleared %d cache files", count)
			printDetail("Directory: %s", store.Dir())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.resolvedCacheDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
