package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/refgraph/pkg/graph"
	"github.com/matzehuels/refgraph/pkg/pipeline"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// browseRefresh is how often the browser redraws to pick up tree sizes
// computed in the background.
const browseRefresh = 250 * time.Millisecond

// browseCommand creates the browse command.
func (c *CLI) browseCommand() *cobra.Command {
	var flags cycleFlags
	return c.nodeCommand("browse", "Walk the reference graph interactively", &flags, func(cmd *cobra.Command, args []string) error {
		key, err := parseNodeArgs(args)
		if err != nil {
			return err
		}
		s, err := c.openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.run(cmd.Context(), flags.options(s.cfg))
		if err != nil {
			return err
		}
		start, err := res.Snapshot.GetNode(key.ID, key.Type)
		if err != nil {
			return err
		}
		m := newBrowseModel(res.Snapshot, s.runner, start)
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	})
}

// =============================================================================
// browseModel - Interactive graph browser
// =============================================================================

// sizeRequester queues background tree-size computations.
type sizeRequester interface {
	RequestSizes(nodes ...*graph.Node)
}

type tickMsg time.Time

// browseModel is the bubbletea model for walking the graph one node at a time.
type browseModel struct {
	snap    *pipeline.Snapshot
	sizes   sizeRequester
	node    *graph.Node
	history []*graph.Node

	showRefs bool
	cursor   int
	offset   int
	height   int
}

func newBrowseModel(snap *pipeline.Snapshot, sizes sizeRequester, start *graph.Node) browseModel {
	m := browseModel{snap: snap, sizes: sizes, height: 15}
	m.visit(start)
	return m
}

func (m *browseModel) visit(n *graph.Node) {
	m.node = n
	m.cursor, m.offset = 0, 0
	if m.sizes != nil {
		m.sizes.RequestSizes(n)
	}
}

func (m browseModel) conns() []graph.Connection {
	if m.showRefs {
		return m.snap.Referencers(m.node)
	}
	return m.snap.Dependencies(m.node)
}

func tick() tea.Cmd {
	return tea.Tick(browseRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m browseModel) Init() tea.Cmd {
	return tick()
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()
	case tea.KeyMsg:
		conns := m.conns()
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(conns)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		case "tab":
			m.showRefs = !m.showRefs
			m.cursor, m.offset = 0, 0
		case "enter", "right", "l":
			if len(conns) == 0 {
				return m, nil
			}
			m.history = append(m.history, m.node)
			m.visit(conns[m.cursor].Node)
		case "backspace", "left", "h":
			if len(m.history) == 0 {
				return m, nil
			}
			prev := m.history[len(m.history)-1]
			m.history = m.history[:len(m.history)-1]
			m.visit(prev)
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 10
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

func (m browseModel) View() string {
	var b strings.Builder
	n := m.node

	b.WriteString(StyleTitle.Render(n.Name) + " " + listDimStyle.Render(n.Key.String()))
	b.WriteString("\n")

	own, _ := n.OwnSize()
	tree := "computing..."
	if v, ok := n.HierarchySize(); ok {
		tree = formatBytes(v)
	}
	packed := "?"
	if ok, err := m.snap.IsPacked(n); err == nil {
		packed = fmt.Sprint(ok)
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("own %s · tree %s · packed %s", formatBytes(own), tree, packed)))
	b.WriteString("\n\n")

	deps := fmt.Sprintf("Dependencies (%d)", len(m.snap.Dependencies(n)))
	refs := fmt.Sprintf("Referencers (%d)", len(m.snap.Referencers(n)))
	if m.showRefs {
		b.WriteString(listDimStyle.Render(deps) + "  " + listSelectedStyle.Render(refs))
	} else {
		b.WriteString(listSelectedStyle.Render(deps) + "  " + listDimStyle.Render(refs))
	}
	b.WriteString("\n")

	conns := m.conns()
	end := min(m.offset+m.height, len(conns))
	rows := [][]string{}
	for i := m.offset; i < end; i++ {
		c := conns[i]
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, c.Type.ID, c.Node.Key.String(), graph.FormatPath(c.Path)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Type", "Node", "Path").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if m.offset+row == m.cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			return lipgloss.NewStyle()
		})
	b.WriteString(t.Render())
	b.WriteString("\n\n")

	pos := 0
	if len(conns) > 0 {
		pos = m.cursor + 1
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d] depth %d", pos, len(conns), len(m.history))))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ follow  ⌫ back  tab deps/refs  q quit"))
	return b.String()
}
