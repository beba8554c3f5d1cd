package cli

import (
	"context"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/pipeline"
	"github.com/matzehuels/refgraph/pkg/source/fs"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before it runs an update.
const DefaultDebounce = 300 * time.Millisecond

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		flags    cycleFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run incremental updates whenever content changes",
		Long: `Watch runs one cycle, then watches the content root and runs another cycle
each time a burst of file changes settles. Hidden directories and the cache
directory are not watched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			opts := flags.options(s.cfg)
			res, err := s.run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printStats(res)
			printInfo("Watching %s (Ctrl+C to stop)", s.host.Root())

			return c.watchLoop(cmd.Context(), s, opts, debounce, printStats)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "quiet period before an update runs")
	return cmd
}

// watchLoop runs opts on every settled batch of changes until ctx is done.
// Failed cycles are logged and the loop keeps going.
func (c *CLI) watchLoop(ctx context.Context, s *session, opts pipeline.Options, window time.Duration, onResult func(*pipeline.Result)) error {
	skip, _ := s.cfg.ResolvedCacheDir()
	w, err := newContentWatcher(s.host, skip, c.Logger)
	if err != nil {
		return err
	}
	defer w.Close()

	events := make(chan string, 256)
	go w.run(ctx, events)

	return collectChanges(ctx, events, window, func(ctx context.Context, ids []string) error {
		c.Logger.Info("content changed", "files", len(ids), "first", ids[0])
		res, err := s.runner.Execute(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Logger.Error("update failed", "err", err)
			return nil
		}
		onResult(res)
		return nil
	})
}

// =============================================================================
// contentWatcher - fsnotify over the content root
// =============================================================================

// contentWatcher forwards changed resource ids below a host's root.
type contentWatcher struct {
	host   *fs.Host
	skip   string
	fsw    *fsnotify.Watcher
	logger *log.Logger
}

func newContentWatcher(host *fs.Host, skip string, logger *log.Logger) (*contentWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if skip != "" {
		if abs, err := filepath.Abs(skip); err == nil {
			skip = abs
		}
	}
	w := &contentWatcher{host: host, skip: skip, fsw: fsw, logger: logger}
	if err := w.addRecursive(host.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *contentWatcher) Close() error { return w.fsw.Close() }

// ignored reports whether path lies in a hidden directory, is a hidden file
// or lies under the cache directory.
func (w *contentWatcher) ignored(path string) bool {
	if w.skip != "" && (path == w.skip || strings.HasPrefix(path, w.skip+string(filepath.Separator))) {
		return true
	}
	id, ok := w.host.ID(path)
	if !ok {
		return false
	}
	return slices.ContainsFunc(strings.Split(id, "/"), func(seg string) bool {
		return strings.HasPrefix(seg, ".")
	})
}

func (w *contentWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return nil // vanished during the walk
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// run pumps fsnotify events into out until ctx is done or the watcher closes.
func (w *contentWatcher) run(ctx context.Context, out chan<- string) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) || w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.logger.Warn("watch directory", "path", ev.Name, "err", err)
					}
				}
			}
			id, ok := w.host.ID(ev.Name)
			if !ok {
				continue
			}
			select {
			case out <- id:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// =============================================================================
// Debounce
// =============================================================================

// collectChanges batches ids from events and calls handle once no new id has
// arrived for window. Each batch is sorted and free of duplicates. It returns
// when ctx is done, when events is closed (after flushing what is pending) or
// when handle fails.
func collectChanges(ctx context.Context, events <-chan string, window time.Duration, handle func(context.Context, []string) error) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(window)
	timer.Stop()

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := make([]string, 0, len(pending))
		for id := range pending {
			batch = append(batch, id)
		}
		slices.Sort(batch)
		clear(pending)
		return handle(ctx, batch)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-events:
			if !ok {
				return flush()
			}
			pending[id] = struct{}{}
			timer.Reset(window)
		case <-timer.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
