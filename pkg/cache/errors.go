package cache

import "errors"

// Sentinel errors for cache persistence.
var (
	// ErrCorrupt is returned when persisted bytes fail structural checks:
	// truncated records, impossible lengths or a missing EOF marker.
	ErrCorrupt = errors.New("corrupt cache data")

	// ErrNotFound is returned when a requested cache file does not exist.
	ErrNotFound = errors.New("not found")
)
