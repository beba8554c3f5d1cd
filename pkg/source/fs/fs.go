// Package fs implements [source.Host] over a directory tree.
//
// Every regular file below the root is a container resource whose id is its
// slash-separated relative path. Dot-directories and "*.meta" sidecars are not
// listed; a sidecar's modification time folds into its file's timestamp.
//
// Files ending in ".asset.toml" are object documents:
//
//	[[object]]
//	id = "mesh"
//	type = "mesh"
//	parent = "root"
//	refs = ["textures/a.png", "props/b.asset.toml#body"]
//	derived_from = ["src/hero.blend"]
//
// A ".refgraph.lock" file at the root marks the host busy: [Host.CanUpdate]
// reports false while it exists.
package fs

import (
	"context"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/source"
)

const (
	// ObjectSuffix marks object documents.
	ObjectSuffix = ".asset.toml"

	// MetaSuffix marks sidecar metadata files.
	MetaSuffix = ".meta"

	// LockFile blocks updates while present at the root.
	LockFile = ".refgraph.lock"

	// DefaultOpenCache is the number of opened containers kept until Cleanup.
	DefaultOpenCache = 256
)

// opened is a parsed container together with the file state it was read at.
type opened struct {
	stamp   int64
	size    int64
	content *source.Content
}

// Host reads resources from a directory.
type Host struct {
	root   string
	opened *lru.Cache[string, opened]
}

// New creates a host rooted at dir.
func New(dir string) (*Host, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "content root")
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeConfiguration, "content root %s is not a directory", abs)
	}
	cache, err := lru.New[string, opened](DefaultOpenCache)
	if err != nil {
		return nil, err
	}
	return &Host{root: abs, opened: cache}, nil
}

// Root returns the absolute content root.
func (h *Host) Root() string { return h.root }

// Path returns the filesystem path of a resource id.
func (h *Host) Path(id string) string {
	return filepath.Join(h.root, filepath.FromSlash(id))
}

// ID returns the resource id for a filesystem path below the root.
func (h *Host) ID(path string) (string, bool) {
	rel, err := filepath.Rel(h.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// List walks the root and returns every container resource sorted by id.
func (h *Host) List(ctx context.Context) ([]source.Resource, error) {
	var out []source.Resource
	err := filepath.WalkDir(h.root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != h.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || Ignored(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // vanished during the walk
		}
		id, _ := h.ID(path)
		out = append(out, source.Resource{ID: id, Timestamp: h.timestamp(path, info.ModTime().UnixNano())})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b source.Resource) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (h *Host) timestamp(path string, mtime int64) int64 {
	if meta, err := os.Stat(path + MetaSuffix); err == nil {
		return max(mtime, meta.ModTime().UnixNano())
	}
	return mtime
}

// Ignored reports whether a file name is never listed as a resource.
func Ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, MetaSuffix)
}

// Open reads a container. Object documents are parsed; other files carry raw
// bytes only. A previously opened container is reused while its timestamp
// and size are unchanged.
func (h *Host) Open(ctx context.Context, id string) (*source.Content, error) {
	if err := errors.ValidateResourceID(id); err != nil {
		return nil, err
	}
	path := h.Path(id)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			h.opened.Remove(id)
			return nil, errors.New(errors.ErrCodeNotFound, "resource %s", id)
		}
		return nil, err
	}
	stamp := h.timestamp(path, info.ModTime().UnixNano())
	if o, ok := h.opened.Get(id); ok && o.stamp == stamp && o.size == info.Size() {
		return o.content, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h.opened.Remove(id)
			return nil, errors.New(errors.ErrCodeNotFound, "resource %s", id)
		}
		return nil, err
	}
	c := &source.Content{ID: id, Raw: raw}
	if strings.HasSuffix(id, ObjectSuffix) {
		if c.Objects, err = ParseObjects(raw); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", id)
		}
	}
	h.opened.Add(id, opened{stamp: stamp, size: info.Size(), content: c})
	return c, nil
}

// Size returns the file size of a resource.
func (h *Host) Size(id string) (int64, bool) {
	info, err := os.Stat(h.Path(id))
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}

// CanUpdate reports false while the lock file exists.
func (h *Host) CanUpdate() bool {
	_, err := os.Stat(filepath.Join(h.root, LockFile))
	return os.IsNotExist(err)
}

// Cleanup forgets every opened container.
func (h *Host) Cleanup() { h.opened.Purge() }

var _ source.Host = (*Host)(nil)

// =============================================================================
// Object documents
// =============================================================================

type objectDoc struct {
	Object []struct {
		ID          string   `toml:"id"`
		Type        string   `toml:"type"`
		Parent      string   `toml:"parent"`
		Refs        []string `toml:"refs"`
		DerivedFrom []string `toml:"derived_from"`
	} `toml:"object"`
}

// ParseObjects decodes an object document.
func ParseObjects(raw []byte) ([]source.Object, error) {
	var doc objectDoc
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return nil, err
	}
	objs := make([]source.Object, 0, len(doc.Object))
	seen := make(map[string]bool, len(doc.Object))
	for i, o := range doc.Object {
		if o.ID == "" {
			return nil, fmt.Errorf("object %d: missing id", i)
		}
		if strings.Contains(o.ID, "#") {
			return nil, fmt.Errorf("object %q: id must not contain '#'", o.ID)
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("object %q: duplicate id", o.ID)
		}
		seen[o.ID] = true
		objs = append(objs, source.Object{
			LocalID:     o.ID,
			Type:        o.Type,
			Parent:      o.Parent,
			Refs:        o.Refs,
			DerivedFrom: o.DerivedFrom,
		})
	}
	return objs, nil
}
