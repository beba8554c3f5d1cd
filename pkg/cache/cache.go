// Package cache provides persistence for dependency caches: a compact binary
// codec and byte stores that hold one file per cache.
//
// # Stores
//
// A [Store] maps a cache file name to its bytes:
//
//   - [FileStore]: one file per cache under a directory (CLI default)
//   - [MemoryStore]: in-process map, for tests and ephemeral sessions
//   - [NullStore]: never persists anything (--no-cache)
//
// Absence of a file is equivalent to an empty cache, never an error.
//
// # File Names
//
// [FileName] embeds a logical cache name and a format version:
//
//	cache.FileName("assets", "v3") // "assets_v3.cache"
//
// Bumping the version on any layout change guarantees stale files are never
// decoded as the current format.
//
// # Binary Format
//
// [Writer] and [Reader] implement the shared primitives: little-endian fixed
// width integers, int32 length-prefixed strings, and a terminal [EOFMarker]
// checked on read to detect truncation. Dependency lists use
// [WriteDependencies] / [ReadDependencies].
package cache

import "context"

// Store persists cache files by name.
//
// Implementations must be safe for concurrent use, though the engine only
// touches each name from the cache that owns it.
type Store interface {
	// Read returns the stored bytes. ok is false when nothing is stored.
	Read(ctx context.Context, name string) (data []byte, ok bool, err error)

	// Write replaces the stored bytes atomically.
	Write(ctx context.Context, name string, data []byte) error

	// Delete removes the stored bytes. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases resources held by the store.
	Close() error
}

// Extension is the file extension of persisted caches.
const Extension = ".cache"

// FileName returns the file name for a logical cache at a format version.
func FileName(name, version string) string {
	return name + "_" + version + Extension
}
