package analysis

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/refgraph/pkg/errors"
	"github.com/matzehuels/refgraph/pkg/graph"
)

var (
	hard     = graph.DependencyType{ID: "object-reference", IsHard: true}
	soft     = graph.DependencyType{ID: "group-membership"}
	indirect = graph.DependencyType{ID: "derived-from", IsIndirect: true}
)

type builder struct {
	g     *graph.Graph
	sizes map[string]int64
}

func newBuilder() *builder {
	return &builder{g: graph.New(), sizes: make(map[string]int64)}
}

func (b *builder) sizer(k graph.Key) (int64, bool) {
	s, ok := b.sizes[k.ID]
	return s, ok
}

func (b *builder) node(id string, size int64) *graph.Node {
	if size > 0 {
		b.sizes[id] = size
	}
	return b.g.Ensure(graph.K(graph.TypeFile, id), func(k graph.Key) *graph.Node {
		return graph.NewNode(k, "", b.sizer)
	})
}

func (b *builder) edge(from, to string, t graph.DependencyType) {
	b.node(from, 0).AddDependency(b.node(to, 0), t, nil)
}

func (b *builder) get(id string) *graph.Node {
	n, _ := b.g.Node(graph.K(graph.TypeFile, id))
	return n
}

func handlers(always []string, never ...string) *graph.HandlerSet {
	class := make(map[string]graph.PackClass)
	for _, id := range always {
		class[id] = graph.PackAlways
	}
	for _, id := range never {
		class[id] = graph.PackNever
	}
	return graph.NewHandlerSet(&graph.BasicHandler{
		Type:     graph.TypeFile,
		PackFunc: func(id string) graph.PackClass { return class[id] },
	})
}

// =============================================================================
// Tree size
// =============================================================================

func TestTreeSizeCycle(t *testing.T) {
	b := newBuilder()
	b.node("A", 1)
	b.node("B", 10)
	b.node("C", 100)
	b.edge("A", "B", hard)
	b.edge("B", "C", hard)
	b.edge("C", "A", hard)

	size, complete := TreeSize(context.Background(), b.get("A"))
	if !complete || size != 111 {
		t.Errorf("TreeSize(A) = %d, %v; want 111, true", size, complete)
	}
}

func TestTreeSizeDiamond(t *testing.T) {
	b := newBuilder()
	b.node("A", 1)
	b.node("B", 10)
	b.node("C", 100)
	b.node("D", 1000)
	b.edge("A", "B", hard)
	b.edge("A", "C", hard)
	b.edge("B", "D", hard)
	b.edge("C", "D", hard)

	if size, _ := TreeSize(context.Background(), b.get("A")); size != 1111 {
		t.Errorf("TreeSize(A) = %d, want 1111 (D counted once)", size)
	}
	if got := len(HardClosure(b.get("A"))); got != 4 {
		t.Errorf("HardClosure has %d nodes, want 4", got)
	}
}

func TestTreeSizeSkipsSoftEdgesAndNonContributing(t *testing.T) {
	b := newBuilder()
	b.node("A", 1)
	b.node("B", 10)
	b.node("C", 0) // no size: does not contribute
	b.node("D", 1000)
	b.edge("A", "B", soft)
	b.edge("A", "C", hard)
	b.edge("C", "D", hard)
	b.edge("A", "A", hard)

	if size, _ := TreeSize(context.Background(), b.get("A")); size != 1001 {
		t.Errorf("TreeSize(A) = %d, want 1001", size)
	}
}

func TestTreeSizeCanceled(t *testing.T) {
	b := newBuilder()
	prev := b.node("n0", 1)
	for i := 1; i < 3*checkEvery; i++ {
		n := b.node("n"+strconv.Itoa(i), 1)
		prev.AddDependency(n, hard, nil)
		prev = n
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	size, complete := TreeSize(ctx, b.get("n0"))
	if complete {
		t.Error("canceled walk should report incomplete")
	}
	if size <= 0 || size >= 3*checkEvery {
		t.Errorf("partial size = %d", size)
	}
}

// =============================================================================
// Packed
// =============================================================================

func TestPackedChain(t *testing.T) {
	b := newBuilder()
	b.edge("R", "X", hard)
	b.edge("X", "Y", soft)
	b.node("Z", 0)
	b.g.LinkReferencers()

	h := handlers([]string{"R"})
	p := NewPacker(h)
	for id, want := range map[string]bool{"R": true, "X": true, "Y": true, "Z": false} {
		got, err := p.IsPacked(b.get(id))
		if err != nil || got != want {
			t.Errorf("IsPacked(%s) = %v, %v; want %v", id, got, err, want)
		}
	}
}

func TestPackedIndirectEdgeBlocks(t *testing.T) {
	b := newBuilder()
	b.edge("R", "X", indirect)
	b.edge("X", "Y", hard)
	b.g.LinkReferencers()

	p := NewPacker(handlers([]string{"R"}))
	for _, id := range []string{"X", "Y"} {
		if ok, _ := p.IsPacked(b.get(id)); ok {
			t.Errorf("%s reported packed through an indirect edge", id)
		}
	}
}

func TestPackedNeverWins(t *testing.T) {
	b := newBuilder()
	b.edge("R", "E", hard)
	b.edge("E", "F", hard)
	b.g.LinkReferencers()

	p := NewPacker(handlers([]string{"R"}, "E"))
	if ok, _ := p.IsPacked(b.get("E")); ok {
		t.Error("never-packed node reported packed")
	}
	if ok, _ := p.IsPacked(b.get("F")); ok {
		t.Error("packed status must not flow through a never-packed node")
	}
}

func TestPackedCycleNoFalsePositive(t *testing.T) {
	b := newBuilder()
	b.edge("A", "B", hard)
	b.edge("B", "A", hard)
	b.edge("R", "C", hard)
	b.edge("C", "B", hard)
	b.g.LinkReferencers()

	p := NewPacker(handlers([]string{"R"}))
	// Query A first: its search meets B, which meets A in progress.
	if ok, _ := p.IsPacked(b.get("A")); !ok {
		t.Error("A is reachable via R -> C -> B -> A")
	}

	b2 := newBuilder()
	b2.edge("A", "B", hard)
	b2.edge("B", "A", hard)
	b2.node("R", 0)
	b2.g.LinkReferencers()
	p2 := NewPacker(handlers([]string{"R"}))
	for _, id := range []string{"A", "B"} {
		if ok, _ := p2.IsPacked(b2.get(id)); ok {
			t.Errorf("%s in an unrooted cycle reported packed", id)
		}
	}
}

func TestTentativeNegativeNotMemoized(t *testing.T) {
	b := newBuilder()
	b.edge("B", "A", hard)
	b.edge("A", "B", hard)
	b.edge("R", "A", hard)
	b.g.LinkReferencers()

	p := NewPacker(handlers([]string{"R"}))
	// A's referencers are B then R. Searching B meets A in progress, which
	// must not memoize B as not packed.
	if ok, _ := p.IsPacked(b.get("A")); !ok {
		t.Fatal("A should be packed via R")
	}
	if ok, _ := p.IsPacked(b.get("B")); !ok {
		t.Error("B was memoized negative while A was in progress")
	}
}

func TestPackedUnknownHandler(t *testing.T) {
	g := graph.New()
	n, _ := g.Add(graph.NewNode(graph.K("mystery", "x"), "", nil))
	p := NewPacker(graph.NewHandlerSet())
	if _, err := p.IsPacked(n); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("err = %v, want CONFIGURATION", err)
	}
	if _, err := PackedSet(g, graph.NewHandlerSet()); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("PackedSet err = %v", err)
	}
}

func TestPackedSetAgreesWithPacker(t *testing.T) {
	b := newBuilder()
	b.edge("R", "A", hard)
	b.edge("A", "B", soft)
	b.edge("B", "C", indirect)
	b.edge("C", "D", hard)
	b.edge("D", "C", hard)
	b.edge("A", "E", hard)
	b.edge("E", "F", hard)
	b.edge("F", "A", hard)
	b.edge("R", "N", hard)
	b.edge("N", "M", hard)
	b.g.LinkReferencers()

	tests := []struct {
		name     string
		handlers *graph.HandlerSet
		packed   []string
	}{
		{"roots R and N", handlers([]string{"R", "N"}), []string{"R", "A", "B", "E", "F", "N", "M"}},
		{"N never packed", handlers([]string{"R"}, "N"), []string{"R", "A", "B", "E", "F"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := PackedSet(b.g, tt.handlers)
			if err != nil {
				t.Fatal(err)
			}
			if len(set) != len(tt.packed) {
				t.Errorf("PackedSet has %d nodes, want %d", len(set), len(tt.packed))
			}
			for _, id := range tt.packed {
				if !set[b.get(id)] {
					t.Errorf("%s missing from PackedSet", id)
				}
			}
			p := NewPacker(tt.handlers)
			for _, n := range b.g.Nodes() {
				if got, _ := p.IsPacked(n); got != set[n] {
					t.Errorf("%s: Packer=%v PackedSet=%v", n.ID, got, set[n])
				}
			}
		})
	}
}

// =============================================================================
// Worker
// =============================================================================

func TestSizeWorkerComputes(t *testing.T) {
	b := newBuilder()
	b.node("A", 1)
	b.node("B", 2)
	b.edge("A", "B", hard)

	w := NewSizeWorker(nil)
	w.Start()
	defer w.Stop()

	w.Push(b.get("B"), b.get("A"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if v, ok := b.get("A").HierarchySize(); !ok || v != 3 {
		t.Errorf("A hierarchy = %d, %v", v, ok)
	}
	if v, ok := b.get("B").HierarchySize(); !ok || v != 2 {
		t.Errorf("B hierarchy = %d, %v", v, ok)
	}
}

func TestSizeWorkerRestartDropsQueue(t *testing.T) {
	// The blocker's size function parks the worker until released.
	release := make(chan struct{})
	var entered atomic.Bool
	gate := func(k graph.Key) (int64, bool) {
		entered.Store(true)
		<-release
		return 5, true
	}

	g := graph.New()
	blocker, _ := g.Add(graph.NewNode(graph.K(graph.TypeFile, "blocker"), "", gate))
	queued, _ := g.Add(graph.NewNode(graph.K(graph.TypeFile, "queued"), "", func(graph.Key) (int64, bool) { return 1, true }))

	w := NewSizeWorker(nil)
	w.Start()
	w.Push(queued, blocker) // LIFO: blocker first

	deadline := time.Now().Add(5 * time.Second)
	for !entered.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if w.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", w.Pending())
	}

	stopped := make(chan struct{})
	go func() {
		w.Restart()
		close(stopped)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	<-stopped
	defer w.Stop()

	if w.Pending() != 0 {
		t.Errorf("Pending after restart = %d, want 0", w.Pending())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Wait(ctx)
	if _, ok := queued.HierarchySize(); ok {
		t.Error("queued request from before restart was computed")
	}
}

func TestSizeWorkerStopIdempotent(t *testing.T) {
	w := NewSizeWorker(nil)
	w.Stop()
	w.Start()
	w.Start()
	w.Stop()
	w.Stop()
}

func TestSizeWorkerStoppedDropsRequests(t *testing.T) {
	b := newBuilder()
	b.node("A", 1)

	w := NewSizeWorker(nil)
	w.Push(b.get("A"))
	if w.Pending() != 0 {
		t.Errorf("Pending before Start = %d, want 0", w.Pending())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Wait(ctx); err != nil {
		t.Errorf("Wait before Start: %v", err)
	}

	w.Start()
	w.Stop()
	w.Push(b.get("A"))
	if err := w.Wait(ctx); err != nil {
		t.Errorf("Wait after Stop: %v", err)
	}
	if _, ok := b.get("A").HierarchySize(); ok {
		t.Error("request pushed to a stopped worker was computed")
	}
}
