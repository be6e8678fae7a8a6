package habits

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitflow/internal/models"
)

var (
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// LogHabitMsg asks the parent to record a completion for today.
type LogHabitMsg struct {
	HabitID string
}

type Model struct {
	habits []models.UserHabit
	done   map[string]bool
	cursor int
	keys   struct{ Up, Down, Log key.Binding }
}

func New() Model {
	m := Model{done: map[string]bool{}}
	m.keys.Up = key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up"))
	m.keys.Down = key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down"))
	m.keys.Log = key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete today"))
	return m
}

// SetHabits shows the adopted habits and which of them have a completed
// log on today.
func (m *Model) SetHabits(habits []models.UserHabit, logs []models.HabitLog, today string) {
	m.habits = habits
	m.done = map[string]bool{}
	for _, l := range logs {
		if l.Date == today && l.Completed {
			m.done[l.HabitID] = true
		}
	}
	if m.cursor >= len(m.habits) {
		m.cursor = max(len(m.habits)-1, 0)
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || len(m.habits) == 0 {
		return m, nil
	}
	switch {
	case key.Matches(km, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(km, m.keys.Down):
		m.cursor = min(m.cursor+1, len(m.habits)-1)
	case key.Matches(km, m.keys.Log):
		h := m.habits[m.cursor]
		if m.done[h.HabitID] || !h.Active {
			return m, nil
		}
		return m, func() tea.Msg { return LogHabitMsg{HabitID: h.HabitID} }
	}
	return m, nil
}

func (m Model) View() string {
	if len(m.habits) == 0 {
		var b strings.Builder
		b.WriteString("\n  No habits adopted yet. Built-in habits:\n\n")
		for _, h := range models.Catalog() {
			fmt.Fprintf(&b, "    %s  %s\n", h.ID, h.Title)
		}
		b.WriteString("\n  Adopt one with 'habitflow habit adopt <id>'.")
		return b.String()
	}

	var b strings.Builder
	for i, h := range m.habits {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		status := pendingStyle.Render("○ pending")
		switch {
		case !h.Active:
			status = pendingStyle.Render("- paused")
		case m.done[h.HabitID]:
			status = doneStyle.Render("● done")
		}
		fmt.Fprintf(&b, "%s%-32s %s  streak %d\n", marker, h.Title, status, h.StreakCurrent)
	}
	return b.String()
}
