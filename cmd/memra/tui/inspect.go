package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Table is a headed set of rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// EntityView is everything the browser shows about one entity.
type EntityView struct {
	Name      string
	Table     string
	Fields    Table
	Relations Table
	Routes    Table
}

// Render lays the entity's tables out one under another.
func (v EntityView) Render() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", v.Name, v.Table)))
	b.WriteString("\n")
	for _, section := range []struct {
		title string
		table Table
	}{
		{"Fields", v.Fields},
		{"Relations", v.Relations},
		{"Routes", v.Routes},
	} {
		b.WriteString("\n" + infoStyle.Render(section.title) + "\n")
		if len(section.table.Rows) == 0 {
			b.WriteString(mutedStyle.Render("none") + "\n")
			continue
		}
		b.WriteString(renderTable(section.table.Headers, section.table.Rows) + "\n")
	}
	return b.String()
}

// InspectModel browses entities; enter opens one, esc goes back.
type InspectModel struct {
	views  []EntityView
	list   list.Model
	detail viewport.Model
	open   bool
	width  int
	height int
}

// NewInspectModel creates the browser over views.
func NewInspectModel(views []EntityView) InspectModel {
	items := make([]list.Item, len(views))
	for i, v := range views {
		items[i] = item{
			title:       v.Name,
			description: fmt.Sprintf("%s • %d fields • %d relations • %d routes", v.Table, len(v.Fields.Rows), len(v.Relations.Rows), len(v.Routes.Rows)),
			filter:      v.Name,
		}
	}
	return InspectModel{
		views:  views,
		list:   newList("Entities", items),
		detail: viewport.New(0, 0),
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-4)
		m.detail.Width = msg.Width - 4
		m.detail.Height = msg.Height - 4
		return m, nil

	case tea.KeyMsg:
		if m.open {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "esc", "backspace":
				m.open = false
				return m, nil
			}
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}

		if m.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "enter":
				if len(m.views) == 0 {
					return m, nil
				}
				selected, ok := m.list.SelectedItem().(item)
				if !ok {
					return m, nil
				}
				for _, v := range m.views {
					if v.Name == selected.filter {
						m.detail.SetContent(v.Render())
						m.detail.GotoTop()
						m.open = true
						break
					}
				}
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the UI
func (m InspectModel) View() string {
	if m.open {
		help := helpStyle.Render(FormatKey("↑/↓", "scroll") + " • " + FormatKey("esc", "back") + " • " + FormatKey("q", "quit"))
		return lipgloss.JoinVertical(lipgloss.Left, m.detail.View(), help)
	}
	help := helpStyle.Render(FormatKey("↑/↓", "navigate") + " • " + FormatKey("/", "filter") + " • " + FormatKey("enter", "open") + " • " + FormatKey("q", "quit"))
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)
}

// RunInspectUI starts the interactive entity browser.
func RunInspectUI(views []EntityView) error {
	_, err := tea.NewProgram(NewInspectModel(views), tea.WithAltScreen()).Run()
	return err
}
