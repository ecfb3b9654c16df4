package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/wippyai/savefile/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD580"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// node is one row of the flattened schema tree.
type node struct {
	path   string
	name   string
	detail string
	depth  int
	parent int
	nested bool
}

// flatten lists s depth first. Paths use the same notation as schema
// mismatch messages.
func flatten(s *schema.Schema) []node {
	var nodes []node
	var walk func(s *schema.Schema, name, path string, depth, parent int)
	walk = func(s *schema.Schema, name, path string, depth, parent int) {
		idx := len(nodes)
		nodes = append(nodes, node{
			path:   path,
			name:   name,
			detail: s.Describe(),
			depth:  depth,
			parent: parent,
		})

		var children int
		child := func(c *schema.Schema, name, p string) {
			children++
			walk(c, name, p, depth+1, idx)
		}
		switch s.Kind {
		case schema.KindAggregate:
			for _, f := range s.Fields {
				child(f.Schema, f.Name, join(path, f.Name))
			}
		case schema.KindTaggedUnion:
			for _, v := range s.Variants {
				vp := join(path, v.Name)
				nodes = append(nodes, node{
					path:   vp,
					name:   v.Name,
					detail: fmt.Sprintf("variant = %d", v.Discriminant),
					depth:  depth + 1,
					parent: idx,
					nested: len(v.Fields) > 0,
				})
				children++
				vi := len(nodes) - 1
				for _, f := range v.Fields {
					walk(f.Schema, f.Name, join(vp, f.Name), depth+2, vi)
				}
			}
		case schema.KindSequence:
			child(s.Elem, "*", join(path, "*"))
		case schema.KindOptional:
			child(s.Elem, "?", join(path, "?"))
		}
		nodes[idx].nested = children > 0
	}
	walk(s, s.Name, ".", 0, -1)
	return nodes
}

func join(path, name string) string {
	return path + "/" + name
}

type browseModel struct {
	filename  string
	nodes     []node
	collapsed map[int]bool
	visible   []int
	filter    textinput.Model
	cursor    int
	filtering bool
}

func newBrowseModel(filename string, s *schema.Schema) *browseModel {
	ti := textinput.New()
	ti.Placeholder = "path or type"
	ti.Prompt = "/ "
	ti.Width = 40

	m := &browseModel{
		filename:  filename,
		nodes:     flatten(s),
		collapsed: make(map[int]bool),
		filter:    ti,
	}
	m.refresh()
	return m
}

// hidden reports whether an ancestor of node i is collapsed.
func (m *browseModel) hidden(i int) bool {
	for p := m.nodes[i].parent; p >= 0; p = m.nodes[p].parent {
		if m.collapsed[p] {
			return true
		}
	}
	return false
}

func (m *browseModel) refresh() {
	query := strings.ToLower(m.filter.Value())
	idx := lo.Range(len(m.nodes))
	if query != "" {
		m.visible = lo.Filter(idx, func(i int, _ int) bool {
			n := m.nodes[i]
			return strings.Contains(strings.ToLower(n.path), query) ||
				strings.Contains(strings.ToLower(n.detail), query)
		})
	} else {
		m.visible = lo.Reject(idx, func(i int, _ int) bool { return m.hidden(i) })
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.filtering {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			m.filtering = false
			m.filter.Blur()
			return m, nil
		case "esc":
			m.filtering = false
			m.filter.Blur()
			m.filter.SetValue("")
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refresh()
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(m.visible) > 0 {
			i := m.visible[m.cursor]
			if m.nodes[i].nested {
				m.collapsed[i] = !m.collapsed[i]
				m.refresh()
			}
		}
	case "/":
		m.filtering = true
		return m, m.filter.Focus()
	case "esc":
		m.filter.SetValue("")
		m.refresh()
	}
	return m, nil
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Schema Browser"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	}

	for row, i := range m.visible {
		n := m.nodes[i]
		marker := "  "
		if n.nested {
			marker = "▾ "
			if m.collapsed[i] {
				marker = "▸ "
			}
		}
		line := strings.Repeat("  ", n.depth) + marker + nameStyle.Render(n.name) + " " + typeStyle.Render(n.detail)
		if row == m.cursor {
			line = selectedStyle.Render(strings.Repeat("  ", n.depth)+marker+n.name+" "+n.detail) +
				"  " + pathStyle.Render(n.path)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.visible) == 0 {
		b.WriteString(helpStyle.Render("no matching nodes"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move • enter fold • / filter • esc clear • q quit"))
	return b.String()
}

func newBrowseCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "browse FILE",
		Short: "Browse the schema of a saved file interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("browse needs an interactive terminal; use the schema command instead")
			}
			h, err := readHeader(args[0], v.GetBool("compressed"))
			if err != nil {
				return err
			}
			p := tea.NewProgram(newBrowseModel(args[0], h.Schema), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}
