package assets

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/refgraph/pkg/cache"
	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/observability"
)

// FileName is the persisted cache file name.
var FileName = cache.FileName(ID, Version)

// Encode serializes the state deterministically.
func Encode(files map[string]*FileEntry) []byte {
	w := cache.NewWriter(cache.DefaultBufferSize)
	w.WriteCount(len(files))
	for _, id := range slices.Sorted(maps.Keys(files)) {
		e := files[id]
		w.WriteString(id)

		w.WriteCount(len(e.Timestamps))
		for _, rid := range slices.Sorted(maps.Keys(e.Timestamps)) {
			w.WriteString(rid)
			w.WriteInt64(e.Timestamps[rid])
		}

		w.WriteCount(len(e.Resources))
		for _, r := range e.Resources {
			w.WriteString(r.Key.ID)
			w.WriteString(r.Key.Type)
			w.WriteCount(len(r.Deps))
			for _, rid := range slices.Sorted(maps.Keys(r.Deps)) {
				w.WriteString(rid)
				cache.WriteDependencies(w, r.Deps[rid])
			}
		}
	}
	w.WriteEOF()
	return w.Bytes()
}

// Decode parses bytes written by [Encode]. Failures wrap [cache.ErrCorrupt].
func Decode(data []byte) (map[string]*FileEntry, error) {
	r := cache.NewReader(data)
	n := r.ReadCount()
	files := make(map[string]*FileEntry, n)
	for range n {
		id := r.ReadString()
		e := &FileEntry{Timestamps: make(map[string]int64)}

		for range r.ReadCount() {
			rid := r.ReadString()
			e.Timestamps[rid] = r.ReadInt64()
		}

		if nres := r.ReadCount(); nres > 0 {
			e.Resources = make([]ResourceEntry, 0, nres)
			for range nres {
				res := ResourceEntry{Deps: make(map[string][]graph.Dependency)}
				res.Key.ID = r.ReadString()
				res.Key.Type = r.ReadString()
				for range r.ReadCount() {
					rid := r.ReadString()
					res.Deps[rid] = cache.ReadDependencies(r)
				}
				e.Resources = append(e.Resources, res)
			}
		}
		if r.Err() != nil {
			break
		}
		files[id] = e
	}
	if err := r.ReadEOF(); err != nil {
		return nil, err
	}
	return files, nil
}

func load(ctx context.Context, store cache.Store, logger *log.Logger) (map[string]*FileEntry, error) {
	data, ok, err := store.Read(ctx, FileName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	if !ok {
		observability.Cache().OnCacheLoad(ctx, ID, 0, false)
		return make(map[string]*FileEntry), nil
	}
	files, err := Decode(data)
	if err != nil {
		logger.Warn("discarding corrupt cache file", "file", FileName, "err", err)
		observability.Cache().OnCacheLoad(ctx, ID, len(data), true)
		return make(map[string]*FileEntry), nil
	}
	observability.Cache().OnCacheLoad(ctx, ID, len(data), false)
	return files, nil
}

func save(ctx context.Context, store cache.Store, files map[string]*FileEntry) error {
	data := Encode(files)
	if err := store.Write(ctx, FileName, data); err != nil {
		return fmt.Errorf("write %s: %w", FileName, err)
	}
	observability.Cache().OnCacheSave(ctx, ID, len(data))
	return nil
}
