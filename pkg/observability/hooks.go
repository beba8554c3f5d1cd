// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about incremental updates, cache persistence and graph builds.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the engine packages
// never import a metrics backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetUpdateHooks(&myUpdateHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Update().OnUpdateStart(ctx, "assets")
//	// ... discover ...
//	observability.Update().OnUpdateComplete(ctx, "assets", stats, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// UpdateStats summarizes one cache update.
type UpdateStats struct {
	Listed     int // resources enumerated from the host
	Discovered int // resources re-discovered
	Pruned     int // stored resources no longer listed
	Failed     int // resources whose discovery failed and kept their old edges
	Skipped    bool
}

// =============================================================================
// Update Hooks
// =============================================================================

// UpdateHooks receives events from incremental cache updates.
type UpdateHooks interface {
	OnUpdateStart(ctx context.Context, cacheID string)
	OnResourceDiscovered(ctx context.Context, cacheID, resolverID string, edges int)
	OnUpdateComplete(ctx context.Context, cacheID string, stats UpdateStats, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache persistence.
type CacheHooks interface {
	// OnCacheLoad records a load. corrupt is true when the file existed but
	// failed structural checks and was discarded.
	OnCacheLoad(ctx context.Context, cacheID string, size int, corrupt bool)

	// OnCacheSave records a write of size bytes.
	OnCacheSave(ctx context.Context, cacheID string, size int)
}

// =============================================================================
// Build Hooks
// =============================================================================

// BuildHooks receives events from graph construction.
type BuildHooks interface {
	OnBuildStart(ctx context.Context, fast bool)
	OnBuildComplete(ctx context.Context, fast bool, nodes, edges int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopUpdateHooks is a no-op implementation of UpdateHooks.
type NoopUpdateHooks struct{}

func (NoopUpdateHooks) OnUpdateStart(context.Context, string)                     {}
func (NoopUpdateHooks) OnResourceDiscovered(context.Context, string, string, int) {}
func (NoopUpdateHooks) OnUpdateComplete(context.Context, string, UpdateStats, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheLoad(context.Context, string, int, bool) {}
func (NoopCacheHooks) OnCacheSave(context.Context, string, int)       {}

// NoopBuildHooks is a no-op implementation of BuildHooks.
type NoopBuildHooks struct{}

func (NoopBuildHooks) OnBuildStart(context.Context, bool)                             {}
func (NoopBuildHooks) OnBuildComplete(context.Context, bool, int, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	updateHooks UpdateHooks = NoopUpdateHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	buildHooks  BuildHooks  = NoopBuildHooks{}
	hooksMu     sync.RWMutex
)

// SetUpdateHooks registers custom update hooks.
// This should be called once at application startup before any updates run.
func SetUpdateHooks(h UpdateHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		updateHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetBuildHooks registers custom build hooks.
func SetBuildHooks(h BuildHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		buildHooks = h
	}
}

// Update returns the registered update hooks.
func Update() UpdateHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return updateHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Build returns the registered build hooks.
func Build() BuildHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return buildHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	updateHooks = NoopUpdateHooks{}
	cacheHooks = NoopCacheHooks{}
	buildHooks = NoopBuildHooks{}
}
