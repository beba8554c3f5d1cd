// Package pipeline runs the load → update → save → build cycle of the
// reference graph engine and publishes the resulting snapshot.
//
// # Architecture
//
// A [Runner] is the session object. It owns:
//
//   - one instance of every activated cache, created on first use
//   - the last successfully built [Snapshot]
//   - the background [analysis.SizeWorker]
//
// Each call to [Runner.Execute] runs these stages:
//
//  1. Resolve: instantiate caches and validate the activation list
//  2. Load: read persisted cache files (optional)
//  3. Update: drive every cache's update task to completion (optional)
//  4. Commit: publish staged results once all tasks finished
//  5. Save: write cache files (optional)
//  6. Build: derive the graph (full or fast)
//  7. Publish: swap in the new snapshot and restart the size worker
//
// Cancellation before the commit point leaves every cache, every cache file
// and the published snapshot exactly as they were, and is reported as an
// ABORTED error.
//
// # Usage
//
//	runner := pipeline.NewRunner(reg, env, store, handlers, logger)
//	defer runner.Close()
//	result, err := runner.Execute(ctx, pipeline.Options{Load: true, Update: true, Save: true})
//	if errors.IsAborted(err) {
//	    // previous snapshot still valid
//	}
//	n, _ := result.Snapshot.GetNode("level.asset.toml", "file")
//
// # Fast Builds
//
// With Options.Fast and a narrow activation list, the builder clones the
// previous graph and re-derives only the edges of the activated caches. See
// [Builder.FastUpdate] for what stays stale.
package pipeline

import (
	"time"

	"github.com/matzehuels/refgraph/pkg/deps"
	"github.com/matzehuels/refgraph/pkg/observability"
)

// =============================================================================
// Options
// =============================================================================

// Options selects what one Execute call does. Load, Update and Save are
// independent, so callers can run load-only, update-only or full cycles.
type Options struct {
	// Active lists the enabled cache/resolver/type combinations.
	// Empty enables everything registered.
	Active []deps.Activation `json:"active,omitempty"`

	Load   bool `json:"load"`   // read persisted cache files first
	Update bool `json:"update"` // run incremental discovery
	Save   bool `json:"save"`   // persist caches afterwards

	// Fast re-derives only the activated caches' edges on a copy of the
	// previous graph instead of rebuilding. Ignored without a previous
	// snapshot or with an empty activation list.
	Fast bool `json:"fast,omitempty"`

	Settings deps.UpdateSettings `json:"settings"`
}

// FullRefresh returns options for a complete load, update and save cycle.
func FullRefresh() Options {
	return Options{Load: true, Update: true, Save: true}
}

// ValidateAndSetDefaults fills zero settings with defaults.
func (o *Options) ValidateAndSetDefaults() error {
	o.Settings = o.Settings.WithDefaults()
	return nil
}

// CacheIDs returns the caches named by the activation list, in order of first
// mention.
func (o Options) CacheIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, a := range o.Active {
		if !seen[a.Cache] {
			seen[a.Cache] = true
			ids = append(ids, a.Cache)
		}
	}
	return ids
}

// =============================================================================
// Result
// =============================================================================

// Result reports one Execute call.
type Result struct {
	RunID    string                               `json:"run_id"`
	Snapshot *Snapshot                            `json:"-"`
	Updates  map[string]observability.UpdateStats `json:"updates"`
	Stats    Stats                                `json:"stats"`
}

// Stats holds stage timings and graph size.
type Stats struct {
	LoadTime   time.Duration `json:"load_time"`
	UpdateTime time.Duration `json:"update_time"`
	SaveTime   time.Duration `json:"save_time"`
	BuildTime  time.Duration `json:"build_time"`
	NodeCount  int           `json:"node_count"`
	EdgeCount  int           `json:"edge_count"`
	FastBuild  bool          `json:"fast_build"`
}
