package source

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/refgraph/pkg/errors"
)

// Memory is an in-process [Host] whose resources and timestamps are set
// directly. It counts Open and Cleanup calls.
type Memory struct {
	mu        sync.Mutex
	resources map[string]memoryResource
	busy      bool
	opens     map[string]int
	cleanups  int
	openErr   map[string]error
}

type memoryResource struct {
	ts      int64
	content Content
	size    int64
}

// NewMemory creates an empty memory host.
func NewMemory() *Memory {
	return &Memory{
		resources: make(map[string]memoryResource),
		opens:     make(map[string]int),
		openErr:   make(map[string]error),
	}
}

// Put adds or replaces a resource.
func (m *Memory) Put(id string, ts int64, objects ...Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[id] = memoryResource{ts: ts, content: Content{ID: id, Objects: objects}, size: int64(len(id))}
}

// PutRaw adds or replaces a resource with raw content.
func (m *Memory) PutRaw(id string, ts int64, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[id] = memoryResource{ts: ts, content: Content{ID: id, Raw: raw}, size: int64(len(raw))}
}

// SetSize overrides the reported size of a resource.
func (m *Memory) SetSize(id string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.resources[id]
	r.size = size
	m.resources[id] = r
}

// Touch sets a resource timestamp without changing its content.
func (m *Memory) Touch(id string, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.resources[id]
	r.ts = ts
	m.resources[id] = r
}

// Remove deletes a resource.
func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources, id)
}

// SetBusy toggles CanUpdate.
func (m *Memory) SetBusy(busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = busy
}

// FailOpen makes Open return err for id. A nil err clears the failure.
func (m *Memory) FailOpen(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.openErr, id)
		return
	}
	m.openErr[id] = err
}

// Opens returns how often id was opened.
func (m *Memory) Opens(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[id]
}

// TotalOpens returns the number of Open calls.
func (m *Memory) TotalOpens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.opens {
		n += v
	}
	return n
}

// Cleanups returns how often Cleanup ran.
func (m *Memory) Cleanups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanups
}

func (m *Memory) List(ctx context.Context) ([]Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Resource, 0, len(m.resources))
	for _, id := range slices.Sorted(maps.Keys(m.resources)) {
		out = append(out, Resource{ID: id, Timestamp: m.resources[id].ts})
	}
	return out, nil
}

func (m *Memory) Open(ctx context.Context, id string) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens[id]++
	if err := m.openErr[id]; err != nil {
		return nil, err
	}
	r, ok := m.resources[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "resource %s", id)
	}
	c := r.content
	return &c, nil
}

func (m *Memory) Size(id string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	return r.size, ok
}

func (m *Memory) CanUpdate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.busy
}

func (m *Memory) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups++
}

var _ Host = (*Memory)(nil)
