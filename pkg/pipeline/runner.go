package pipeline

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/refgraph/pkg/analysis"
	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/observability"
)

// Runner is the session object: it owns the cache instances, the last good
// snapshot and the size worker. Execute calls are serialized; snapshot
// queries may run concurrently with them.
type Runner struct {
	Registry *deps.Registry
	Env      deps.Env
	Store    cache.Store
	Handlers *graph.HandlerSet
	Logger   *log.Logger

	mu       sync.Mutex
	caches   map[string]deps.Cache
	snapshot atomic.Pointer[Snapshot]
	worker   *analysis.SizeWorker
}

// NewRunner creates a runner. A nil store disables persistence and a nil
// logger uses the default logger.
func NewRunner(reg *deps.Registry, env deps.Env, store cache.Store, handlers *graph.HandlerSet, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if store == nil {
		store = cache.NewNullStore()
	}
	if env.Logger == nil {
		env.Logger = logger
	}
	return &Runner{
		Registry: reg,
		Env:      env,
		Store:    store,
		Handlers: handlers,
		Logger:   logger,
		caches:   make(map[string]deps.Cache),
		worker:   analysis.NewSizeWorker(logger),
	}
}

// Snapshot returns the last successfully built snapshot, or nil.
func (r *Runner) Snapshot() *Snapshot { return r.snapshot.Load() }

// Cache returns the live instance of a cache, if it has been created.
func (r *Runner) Cache(id string) (deps.Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[id]
	return c, ok
}

// RequestSizes queues tree-size computations on the background worker.
// Results appear through Node.HierarchySize.
func (r *Runner) RequestSizes(nodes ...*graph.Node) { r.worker.Push(nodes...) }

// WaitSizes blocks until the size worker is idle.
func (r *Runner) WaitSizes(ctx context.Context) error { return r.worker.Wait(ctx) }

// Close stops the size worker and closes the store.
func (r *Runner) Close() error {
	r.worker.Stop()
	return r.Store.Close()
}

// Execute runs one cycle. See the package documentation for the stages.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &Result{RunID: uuid.NewString(), Updates: make(map[string]observability.UpdateStats)}
	logger := r.Logger.With("run", result.RunID[:8])

	ids := opts.CacheIDs()
	if len(ids) == 0 {
		ids = r.Registry.CacheIDs()
	}

	// =========================================================================
	// Resolve + Load
	// =========================================================================
	caches, live, err := r.resolve(ctx, ids, opts.Load, &result.Stats)
	if err != nil {
		return nil, err
	}
	active, err := deps.NewActiveSet(caches, opts.Active)
	if err != nil {
		return nil, err
	}
	types, err := deps.TypeSetFor(caches, active)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// Update + Commit
	// =========================================================================
	start := time.Now()
	tasks := make([]deps.Task, len(caches))
	for i, c := range caches {
		tasks[i] = c.Update(opts.Settings, active, opts.Update)
	}
	if err := deps.Run(ctx, tasks...); err != nil {
		if errors.IsAborted(err) {
			logger.Warn("update aborted, keeping previous state")
		}
		return nil, err
	}
	deps.CommitAll(tasks...)
	r.caches = live
	for i, c := range caches {
		c.InitLookup()
		result.Updates[c.ID()] = tasks[i].Stats()
	}
	result.Stats.UpdateTime = time.Since(start)
	if opts.Update {
		logger.Info("updated caches", "caches", sortedIDs(caches), "duration", result.Stats.UpdateTime)
	}

	// =========================================================================
	// Save
	// =========================================================================
	if opts.Save {
		// Committed state is persisted even if cancellation arrives now.
		start = time.Now()
		saveCtx := context.WithoutCancel(ctx)
		for _, c := range caches {
			if err := c.Save(saveCtx, r.Store); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "save %s", c.ID())
			}
		}
		result.Stats.SaveTime = time.Since(start)
	}

	// =========================================================================
	// Build + Publish
	// =========================================================================
	start = time.Now()
	builder := NewBuilder(types, r.Handlers, logger)
	prev := r.snapshot.Load()
	var g *graph.Graph
	fast := opts.Fast && len(opts.Active) > 0 && prev != nil
	if fast {
		g = prev.Graph.Clone()
		err = builder.FastUpdate(ctx, g, caches)
	} else {
		g, err = builder.Build(ctx, caches)
	}
	if err != nil {
		return nil, err
	}
	result.Stats.BuildTime = time.Since(start)
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()
	result.Stats.FastBuild = fast

	snapTypes := types
	if fast {
		snapTypes = unionTypes(prev.Types, types)
	}
	snap := newSnapshot(g, snapTypes, r.Handlers, result.RunID, fast)
	r.worker.Restart()
	r.snapshot.Store(snap)
	result.Snapshot = snap

	logger.Info("built graph", "nodes", result.Stats.NodeCount, "edges", result.Stats.EdgeCount,
		"fast", fast, "duration", result.Stats.BuildTime)
	return result, nil
}

// resolve returns the cache instances for ids, creating missing ones, and the
// cache map to install on commit. With load set, every cache is loaded into a
// fresh instance so an aborted cycle leaves the live instances untouched.
func (r *Runner) resolve(ctx context.Context, ids []string, load bool, stats *Stats) ([]deps.Cache, map[string]deps.Cache, error) {
	start := time.Now()
	next := maps.Clone(r.caches)
	out := make([]deps.Cache, 0, len(ids))
	for _, id := range ids {
		c, ok := next[id]
		if !ok || load {
			fresh, err := r.Registry.New(r.Env, id)
			if err != nil {
				return nil, nil, err
			}
			if load {
				if err := fresh.Load(ctx, r.Store); err != nil {
					if ctx.Err() != nil {
						return nil, nil, errors.Aborted(ctx.Err(), "load of %s interrupted", id)
					}
					return nil, nil, errors.Wrap(errors.ErrCodeInternal, err, "load %s", id)
				}
				fresh.InitLookup()
			}
			c = fresh
			next[id] = c
		}
		out = append(out, c)
	}
	if load {
		stats.LoadTime = time.Since(start)
	}
	return out, next, nil
}
