package goals

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitflow/internal/models"
)

const barWidth = 20

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// SetProgressMsg asks the parent to dispatch a progress update.
type SetProgressMsg struct {
	ID       string
	Progress int
}

type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Increase key.Binding
	Decrease key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Increase: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "progress +10"),
		),
		Decrease: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "progress -10"),
		),
	}
}

type Model struct {
	viewport viewport.Model
	keys     KeyMap
	Goals    []models.Goal
	cursor   int
}

func New(width, height int) Model {
	return Model{
		viewport: viewport.New(width, height),
		keys:     DefaultKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && len(m.Goals) > 0 {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.cursor = max(m.cursor-1, 0)
			m.Render()
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.cursor = min(m.cursor+1, len(m.Goals)-1)
			m.Render()
			return m, nil
		case key.Matches(msg, m.keys.Increase):
			return m, m.step(10)
		case key.Matches(msg, m.keys.Decrease):
			return m, m.step(-10)
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) step(delta int) tea.Cmd {
	g := m.Goals[m.cursor]
	next := min(max(g.Progress+delta, 0), 100)
	if next == g.Progress {
		return nil
	}
	return func() tea.Msg { return SetProgressMsg{ID: g.ID, Progress: next} }
}

func (m Model) View() string {
	if len(m.Goals) == 0 {
		return "\n  No goals yet."
	}
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

func (m *Model) SetGoals(goals []models.Goal) {
	m.Goals = goals
	if m.cursor >= len(goals) {
		m.cursor = max(len(goals)-1, 0)
	}
	m.Render()
}

// Render redraws the board into the viewport.
func (m *Model) Render() {
	var b strings.Builder
	for i, g := range m.Goals {
		title := titleStyle.Render(g.Title)
		marker := "  "
		if i == m.cursor {
			title = selectedStyle.Render(g.Title)
			marker = "> "
		}
		status := string(g.Status)
		if status == "" {
			status = string(models.GoalActive)
		}
		fmt.Fprintf(&b, "%s%s %s\n", marker, title, statusStyle.Render(status))
		fmt.Fprintf(&b, "  %s %3d%%\n", bar(g.Progress), g.Progress)
		for _, ms := range g.Milestones {
			check := "[ ]"
			if ms.Completed {
				check = "[x]"
			}
			fmt.Fprintf(&b, "    %s %s\n", check, ms.Title)
		}
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

func bar(progress int) string {
	filled := progress * barWidth / 100
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled)
}
