package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/refgraph/pkg/graph"
)

type recordingSizes struct {
	requested []graph.Key
}

func (r *recordingSizes) RequestSizes(nodes ...*graph.Node) {
	for _, n := range nodes {
		r.requested = append(r.requested, n.Key)
	}
}

func press(t *testing.T, m browseModel, key tea.KeyMsg) browseModel {
	t.Helper()
	next, _ := m.Update(key)
	return next.(browseModel)
}

func TestBrowseNavigation(t *testing.T) {
	_, res := openTestSession(t)
	start, err := res.Snapshot.GetNode(sceneRoot, graph.TypeObject)
	if err != nil {
		t.Fatal(err)
	}
	sizes := &recordingSizes{}
	m := newBrowseModel(res.Snapshot, sizes, start)

	if len(sizes.requested) != 1 || sizes.requested[0] != start.Key {
		t.Fatalf("requested = %v, want the start node", sizes.requested)
	}

	deps := m.conns()
	if len(deps) == 0 {
		t.Fatal("scene root has no dependencies")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Fatalf("cursor = %d after down, want 1", m.cursor)
	}
	target := deps[1].Node

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.node != target {
		t.Fatalf("node = %v after enter, want %v", m.node.Key, target.Key)
	}
	if m.cursor != 0 || len(m.history) != 1 {
		t.Errorf("cursor = %d, history = %d after enter", m.cursor, len(m.history))
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !m.showRefs {
		t.Fatal("tab should switch to referencers")
	}
	if !strings.Contains(m.View(), "Referencers") {
		t.Error("view should show the referencers tab")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	if m.node != start || len(m.history) != 0 {
		t.Errorf("backspace should return to the start node, at %v", m.node.Key)
	}

	// Back with empty history is a no-op.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	if m.node != start {
		t.Error("backspace with empty history moved")
	}
}

func TestBrowseCursorBounds(t *testing.T) {
	_, res := openTestSession(t)
	start, err := res.Snapshot.GetNode("textures/old.png", graph.TypeFile)
	if err != nil {
		t.Fatal(err)
	}
	m := newBrowseModel(res.Snapshot, nil, start)

	// old.png has no dependencies: movement and enter are no-ops.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.cursor != 0 || m.node != start {
		t.Errorf("cursor = %d, node = %v", m.cursor, m.node.Key)
	}
	if !strings.Contains(m.View(), "[0/0]") {
		t.Errorf("view should show an empty position:\n%s", m.View())
	}
}

func TestBrowseQuit(t *testing.T) {
	_, res := openTestSession(t)
	start, err := res.Snapshot.GetNode(sceneRoot, graph.TypeObject)
	if err != nil {
		t.Fatal(err)
	}
	m := newBrowseModel(res.Snapshot, nil, start)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
