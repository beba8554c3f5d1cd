// Package source defines the host environment the dependency engine reads
// resources from.
//
// A [Host] enumerates container resources with their content timestamps and
// opens one container at a time for discovery. The engine never walks storage
// itself; everything it learns about the repository comes through this
// interface, which keeps caches testable against in-memory hosts.
//
// The filesystem implementation lives in [github.com/matzehuels/refgraph/pkg/source/fs].
package source

import (
	"context"
	"slices"
)

// Resource is one listed container resource.
type Resource struct {
	// ID is the stable, slash-separated resource id.
	ID string

	// Timestamp is the content timestamp: the maximum over the resource's own
	// modification time and any sidecar metadata's modification time.
	Timestamp int64
}

// Object is a sub-resource found inside a container.
type Object struct {
	LocalID     string
	Type        string
	Parent      string   // local id of the hierarchy parent, empty at top level
	Refs        []string // referenced resource ids; "#" marks an object target
	DerivedFrom []string // build-time sources
}

// Content is an opened container.
type Content struct {
	ID      string
	Raw     []byte
	Objects []Object
}

// Object returns the object with the given local id.
func (c *Content) Object(local string) (Object, bool) {
	for _, o := range c.Objects {
		if o.LocalID == local {
			return o, true
		}
	}
	return Object{}, false
}

// Ancestors returns the local ids from the outermost ancestor down to the
// direct parent of local. Parent cycles are cut at the first repeat.
func (c *Content) Ancestors(local string) []string {
	var chain []string
	seen := map[string]bool{local: true}
	o, ok := c.Object(local)
	for ok && o.Parent != "" && !seen[o.Parent] {
		seen[o.Parent] = true
		chain = append(chain, o.Parent)
		o, ok = c.Object(o.Parent)
	}
	slices.Reverse(chain)
	return chain
}

// Host is the content repository the engine runs against.
type Host interface {
	// List enumerates every container resource with its current timestamp.
	List(ctx context.Context) ([]Resource, error)

	// Open loads a container's raw content and structural children.
	Open(ctx context.Context, id string) (*Content, error)

	// Size returns the on-disk size of a container resource.
	Size(id string) (int64, bool)

	// CanUpdate reports whether the host currently permits a rebuild.
	CanUpdate() bool

	// Cleanup drops transient loaded state to bound peak memory.
	Cleanup()
}
