package bundles

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/observability"
	"github.com/matzehuels/refgraph/pkg/source"
)

type updateTask struct {
	c      *Cache
	active *deps.ActiveSet

	listed  []source.Resource
	staged  *state
	done    bool
	stats   observability.UpdateStats
	started time.Time
}

func (t *updateTask) Stats() observability.UpdateStats { return t.stats }

// Step lists the host on the first call and resolves the manifest on the
// second, so cancellation can land between the two.
func (t *updateTask) Step(ctx context.Context) (bool, error) {
	if t.done {
		return true, nil
	}
	if t.listed == nil {
		t.started = time.Now()
		observability.Update().OnUpdateStart(ctx, ID)
		listed, err := t.c.host.List(ctx)
		if err != nil {
			if errors.IsAborted(err) {
				return false, errors.Aborted(err, "listing %s", ID)
			}
			return false, errors.Wrap(errors.ErrCodeInternal, err, "list resources")
		}
		t.listed = listed
		if t.listed == nil {
			t.listed = []source.Resource{}
		}
		t.stats.Listed = len(listed)
		return false, nil
	}

	t.resolve(ctx)
	t.done = true
	observability.Update().OnUpdateComplete(ctx, ID, t.stats, time.Since(t.started), nil)
	return true, nil
}

func (t *updateTask) resolve(ctx context.Context) {
	prev := t.c.st
	ids := make([]string, len(t.listed))
	manifestTS, haveManifest := int64(0), false
	for i, r := range t.listed {
		ids[i] = r.ID
		if r.ID == t.c.manifest {
			manifestTS, haveManifest = r.Timestamp, true
		}
	}
	slices.Sort(ids)
	fingerprint := cache.HashStrings(ids)

	var run []ManifestResolver
	stale := fingerprint != prev.fingerprint
	for _, r := range t.c.resolvers {
		if !t.active.ResolverActive(ID, r.ID()) {
			continue
		}
		run = append(run, r)
		if deps.NeedsDiscovery(prev.timestamps, true, r.ID(), manifestTS) {
			stale = true
		}
	}
	if !stale || len(run) == 0 {
		t.staged = prev
		return
	}

	manifest := &Manifest{}
	if haveManifest {
		content, err := t.c.host.Open(ctx, t.c.manifest)
		if err == nil {
			manifest, err = ParseManifest(content.Raw)
		}
		if err != nil {
			t.stats.Failed++
			t.c.logger.Warn("bundle manifest unreadable, keeping previous bundles", "manifest", t.c.manifest, "err", err)
			t.staged = prev
			return
		}
	}

	// Active resolvers are re-run together; edges of inactive ones carry over.
	st := &state{
		timestamps:  maps.Clone(prev.timestamps),
		fingerprint: fingerprint,
		bundles:     make(map[string][]graph.Dependency),
	}
	ran := make(map[string]bool, len(run))
	for _, r := range run {
		ran[r.ID()] = true
		st.timestamps[r.ID()] = manifestTS
	}
	for _, b := range manifest.Bundles {
		st.bundles[b.Name] = nil
	}
	for name, ds := range prev.bundles {
		if _, ok := st.bundles[name]; !ok {
			continue
		}
		for _, d := range ds {
			if owner, ok := t.c.typeOwner[d.TypeID]; ok && !ran[owner] {
				st.bundles[name] = append(st.bundles[name], d)
			}
		}
	}
	for _, r := range run {
		found := r.Resolve(manifest, t.listed)
		for _, name := range slices.Sorted(maps.Keys(found)) {
			ds := deps.DropSelfEdges(name, found[name])
			st.bundles[name] = append(st.bundles[name], ds...)
			observability.Update().OnResourceDiscovered(ctx, ID, r.ID(), len(ds))
		}
	}
	t.stats.Discovered = len(manifest.Bundles)
	t.staged = st
}

func (t *updateTask) Commit() {
	if !t.done {
		return
	}
	t.c.st = t.staged
	t.c.active = t.active
}
