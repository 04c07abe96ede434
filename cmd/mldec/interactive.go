package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/tdrkit/mldec/metalib"
	"github.com/tdrkit/mldec/render"
	"github.com/tdrkit/mldec/scan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F87AF")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F87AF"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func browseCmd() *cli.Command {
	return &cli.Command{
		Name:      "browse",
		Usage:     "Explore a file's blobs and types interactively",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("usage: mldec browse <file>", 1)
			}
			p := tea.NewProgram(newBrowseModel(cmd.Args().Get(0)), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
}

type browseState int

const (
	stateSelectBlob browseState = iota
	stateSelectType
	stateShowType
)

type typeEntry struct {
	name string
	kind string
}

type browseModel struct {
	err      error
	filename string
	state    browseState

	data       []byte
	candidates []scan.Candidate
	selected   int

	lib      *metalib.Lib
	types    []typeEntry
	filtered []typeEntry
	typeSel  int
	filter   textinput.Model

	view   viewport.Model
	width  int
	height int
	ready  bool
}

func newBrowseModel(filename string) *browseModel {
	filter := textinput.New()
	filter.Placeholder = "filter types"
	filter.Prompt = "/ "
	filter.Width = 40
	return &browseModel{
		filename: filename,
		state:    stateSelectBlob,
		filter:   filter,
	}
}

type loadedMsg struct {
	err        error
	data       []byte
	candidates []scan.Candidate
}

type decodedMsg struct {
	err error
	lib *metalib.Lib
}

func (m *browseModel) Init() tea.Cmd {
	return m.loadFile
}

func (m *browseModel) loadFile() tea.Msg {
	data, candidates, err := scan.File(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	if len(candidates) == 0 {
		return loadedMsg{err: fmt.Errorf("no blobs found in %s", m.filename)}
	}
	return loadedMsg{data: data, candidates: candidates}
}

func (m *browseModel) decodeSelected() tea.Msg {
	lib, err := metalib.Parse(m.data, m.candidates[m.selected].Offset)
	if err != nil {
		return decodedMsg{err: err}
	}
	return decodedMsg{lib: lib}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - 4
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateSelectType || !m.filter.Focused() {
				return m, tea.Quit
			}

		case "up", "k":
			switch m.state {
			case stateSelectBlob:
				if m.selected > 0 {
					m.selected--
				}
			case stateSelectType:
				if !m.filter.Focused() && m.typeSel > 0 {
					m.typeSel--
				}
			}

		case "down", "j":
			switch m.state {
			case stateSelectBlob:
				if m.selected < len(m.candidates)-1 {
					m.selected++
				}
			case stateSelectType:
				if !m.filter.Focused() && m.typeSel < len(m.filtered)-1 {
					m.typeSel++
				}
			}

		case "/":
			if m.state == stateSelectType && !m.filter.Focused() {
				m.filter.Focus()
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectBlob:
				return m, m.decodeSelected
			case stateSelectType:
				if m.filter.Focused() {
					m.filter.Blur()
					return m, nil
				}
				if len(m.filtered) > 0 {
					m.showType(m.filtered[m.typeSel].name)
				}
			}

		case "esc":
			switch m.state {
			case stateSelectType:
				if m.filter.Focused() {
					m.filter.Blur()
				} else if len(m.candidates) > 1 {
					m.state = stateSelectBlob
					m.lib = nil
				}
			case stateShowType:
				m.state = stateSelectType
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.data = msg.data
		m.candidates = msg.candidates
		if len(m.candidates) == 1 {
			return m, m.decodeSelected
		}

	case decodedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.lib = msg.lib
		m.collectTypes()
		m.state = stateSelectType
	}

	if m.state == stateSelectType && m.filter.Focused() {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}
	if m.state == stateShowType {
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *browseModel) collectTypes() {
	m.types = nil
	for _, id := range m.lib.Roots() {
		d, _ := m.lib.Get(id)
		m.types = append(m.types, typeEntry{name: d.Name, kind: d.Kind.String()})
	}
	for _, id := range m.lib.Groups() {
		d, _ := m.lib.Get(id)
		m.types = append(m.types, typeEntry{name: d.Name, kind: d.Kind.String()})
	}
	m.filter.SetValue("")
	m.applyFilter()
}

func (m *browseModel) applyFilter() {
	needle := strings.ToLower(m.filter.Value())
	m.filtered = m.filtered[:0]
	for _, t := range m.types {
		if needle == "" || strings.Contains(strings.ToLower(t.name), needle) {
			m.filtered = append(m.filtered, t)
		}
	}
	if m.typeSel >= len(m.filtered) {
		m.typeSel = 0
	}
}

func (m *browseModel) showType(name string) {
	tree, err := render.ByName(m.lib, name)
	if err != nil {
		m.err = err
		return
	}
	var buf bytes.Buffer
	if err := render.WriteXML(&buf, tree.Node); err != nil {
		m.err = err
		return
	}
	content := buf.String()
	if tree.BackRefs > 0 {
		content += helpStyle.Render(fmt.Sprintf("\n%d recursive reference(s) cut\n", tree.BackRefs))
	}
	m.view.SetContent(content)
	m.view.GotoTop()
	m.err = nil
	m.state = stateShowType
}

func (m *browseModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.candidates == nil {
		return "Scanning " + m.filename + "..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("mldec"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectBlob:
		b.WriteString("Select a blob:\n\n")
		for i, c := range m.candidates {
			line := fmt.Sprintf("%s at 0x%x (%d types, %d macros)",
				nameStyle.Render(c.Name), c.Offset, c.Metas, c.Macros)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter decode • q quit"))

	case stateSelectType:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, t := range m.filtered {
			line := nameStyle.Render(t.name) + " " + metaStyle.Render(t.kind)
			if i == m.typeSel && !m.filter.Focused() {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • / filter • enter view • esc back • q quit"))

	case stateShowType:
		if m.ready {
			b.WriteString(m.view.View())
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}

	return b.String()
}
