package assets

import (
	"context"
	"maps"
	"runtime"
	"time"

	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/observability"
	"github.com/matzehuels/refgraph/pkg/source"
)

type phase int

const (
	phaseList phase = iota
	phaseDiscover
	phaseDone
)

type pendingResource struct {
	source.Resource
	resolvers []ContentResolver
}

// updateTask stages a copy of the container map. Entries are replaced, never
// mutated, so the live cache keeps serving reads until Commit.
type updateTask struct {
	c        *Cache
	settings deps.UpdateSettings
	active   *deps.ActiveSet

	phase     phase
	staged    map[string]*FileEntry
	pending   []pendingResource
	next      int
	processed int
	stats     observability.UpdateStats
	started   time.Time
}

func newUpdateTask(c *Cache, settings deps.UpdateSettings, active *deps.ActiveSet) *updateTask {
	return &updateTask{c: c, settings: settings, active: active}
}

func (t *updateTask) Stats() observability.UpdateStats { return t.stats }

func (t *updateTask) Step(ctx context.Context) (bool, error) {
	switch t.phase {
	case phaseList:
		if err := t.list(ctx); err != nil {
			observability.Update().OnUpdateComplete(ctx, ID, t.stats, time.Since(t.started), err)
			return false, err
		}
		t.phase = phaseDiscover
		return false, nil
	case phaseDiscover:
		end := min(t.next+t.settings.BatchSize, len(t.pending))
		for _, p := range t.pending[t.next:end] {
			if err := t.discover(ctx, p); err != nil {
				return false, err
			}
		}
		t.next = end
		if t.next < len(t.pending) {
			return false, nil
		}
		t.phase = phaseDone
		t.c.logger.Debug("update finished",
			"listed", t.stats.Listed, "discovered", t.stats.Discovered,
			"pruned", t.stats.Pruned, "failed", t.stats.Failed,
			"duration", time.Since(t.started))
		observability.Update().OnUpdateComplete(ctx, ID, t.stats, time.Since(t.started), nil)
		return true, nil
	default:
		return true, nil
	}
}

// list enumerates the host, prunes vanished containers and computes the
// resources whose applicable resolvers need discovery.
func (t *updateTask) list(ctx context.Context) error {
	t.started = time.Now()
	observability.Update().OnUpdateStart(ctx, ID)

	listed, err := t.c.host.List(ctx)
	if err != nil {
		if errors.IsAborted(err) {
			return errors.Aborted(err, "listing %s", ID)
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "list resources")
	}
	t.stats.Listed = len(listed)

	t.staged = maps.Clone(t.c.files)
	seen := make(map[string]bool, len(listed))
	for _, r := range listed {
		seen[r.ID] = true
	}
	t.stats.Pruned = deps.Prune(t.staged, seen)

	for _, r := range listed {
		prev, known := t.staged[r.ID]
		var stored map[string]int64
		if known {
			stored = prev.Timestamps
		}
		var run []ContentResolver
		for _, res := range t.c.resolvers {
			if !t.active.ResolverActive(ID, res.ID()) || !res.Handles(r.ID) {
				continue
			}
			if deps.NeedsDiscovery(stored, known, res.ID(), r.Timestamp) {
				run = append(run, res)
			}
		}
		switch {
		case len(run) > 0:
			t.pending = append(t.pending, pendingResource{Resource: r, resolvers: run})
		case !known:
			t.staged[r.ID] = &FileEntry{Timestamps: map[string]int64{}}
		}
	}
	return nil
}

// discover opens a container once and runs every pending resolver on it.
// Resolvers that did not need to run keep their previous edges. On failure the
// previous entry stays untouched.
func (t *updateTask) discover(ctx context.Context, p pendingResource) error {
	prev := t.staged[p.ID]
	defer t.cleanup()

	content, err := t.c.host.Open(ctx, p.ID)
	if err != nil {
		if errors.IsAborted(err) {
			return errors.Aborted(err, "opening %s", p.ID)
		}
		t.fail(p.ID, prev, err)
		return nil
	}

	found := make(map[graph.Key]map[string][]graph.Dependency)
	var order []graph.Key
	ensure := func(k graph.Key) map[string][]graph.Dependency {
		m, ok := found[k]
		if !ok {
			m = make(map[string][]graph.Dependency)
			found[k] = m
			order = append(order, k)
		}
		return m
	}
	for _, o := range content.Objects {
		ensure(ObjectKey(p.ID, o.LocalID))
	}

	ran := make(map[string]bool, len(p.resolvers))
	for _, res := range p.resolvers {
		rid := res.ID()
		ran[rid] = true
		edges := 0
		err := res.Discover(content, func(from graph.Key, d graph.Dependency) {
			m := ensure(from)
			m[rid] = append(m[rid], d)
			edges++
		})
		if err != nil {
			t.fail(p.ID, prev, err)
			return nil
		}
		observability.Update().OnResourceDiscovered(ctx, ID, rid, edges)
	}

	entry := &FileEntry{Timestamps: make(map[string]int64)}
	if prev != nil {
		maps.Copy(entry.Timestamps, prev.Timestamps)
		// Edges of resolvers that were not re-run carry over for resources
		// still present in the container.
		for _, r := range prev.Resources {
			m, ok := found[r.Key]
			if !ok {
				continue
			}
			for rid, ds := range r.Deps {
				if !ran[rid] {
					m[rid] = ds
				}
			}
		}
	}
	for rid := range ran {
		entry.Timestamps[rid] = p.Timestamp
	}
	for _, k := range order {
		res := ResourceEntry{Key: k, Deps: found[k]}
		for rid, ds := range res.Deps {
			if !ran[rid] {
				continue
			}
			if ds = deps.DropSelfEdges(k.ID, ds); ds == nil {
				delete(res.Deps, rid)
			} else {
				res.Deps[rid] = ds
			}
		}
		entry.Resources = append(entry.Resources, res)
	}

	t.staged[p.ID] = entry
	t.stats.Discovered++
	return nil
}

func (t *updateTask) fail(id string, prev *FileEntry, err error) {
	t.stats.Failed++
	t.c.logger.Warn("discovery failed, keeping previous edges", "resource", id, "err", err)
	if prev == nil {
		t.staged[id] = &FileEntry{Timestamps: map[string]int64{}}
	}
}

func (t *updateTask) cleanup() {
	t.processed++
	if t.processed%t.settings.CleanupInterval == 0 {
		t.c.host.Cleanup()
		runtime.GC()
	}
}

func (t *updateTask) Commit() {
	if t.phase != phaseDone {
		return
	}
	t.c.files = t.staged
	t.c.active = t.active
	t.c.InitLookup()
}
