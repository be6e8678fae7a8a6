package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/state"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case constants.StateTodos:
		content = docStyle.Render(m.todoList.View())
	case constants.StateGoals:
		content = docStyle.Render(m.goalsModel.View())
	case constants.StateHabits:
		content = docStyle.Render(m.habitsModel.View())
	case constants.StateSync:
		content = docStyle.Render(m.viewSync())
	case constants.StateAddTodo:
		content = docStyle.Render(m.form.View())
	case constants.StateConfirmDelete:
		content = m.viewConfirmDelete()
	}

	parts := []string{m.viewTabs(), content}
	if m.message != "" {
		parts = append(parts, "  "+m.message)
	}
	parts = append(parts, m.help.View(m))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewTabs() string {
	var tabs []string
	for i, title := range []string{"Todos", "Goals", "Habits", "Sync"} {
		if m.state == constants.SessionState(i) {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewSync() string {
	var b strings.Builder
	user := "signed out (local only)"
	if m.current.User != nil {
		user = m.current.User.Name() + " <" + m.current.User.Email + ">"
	}
	fmt.Fprintf(&b, "User:      %s\n", user)
	fmt.Fprintf(&b, "Phase:     %s\n", m.sync.Phase)
	fmt.Fprintf(&b, "Synced:    %d\n", m.sync.Synced)
	fmt.Fprintf(&b, "Degraded:  %d\n", m.sync.Degraded)
	fmt.Fprintf(&b, "Loads degraded: %d\n", m.sync.LoadsDegraded)
	if m.sync.LastError != "" {
		fmt.Fprintf(&b, "\n%s\n%s\n",
			warnStyle.Render("Last remote failure ("+m.sync.LastErrorAt.Format("2006-01-02 15:04:05")+"):"),
			m.sync.LastError)
		b.WriteString(mutedStyle.Render("\nLocal changes are kept but failed writes are not retried against the remote store."))
		b.WriteString("\n")
	}

	st := state.ComputeStats(m.current)
	b.WriteString("\n")
	if lvl := st.Level; lvl != nil {
		fmt.Fprintf(&b, "Level %d:   %d / %d XP (%.0f%%)\n", lvl.Level, lvl.XP, lvl.Next, lvl.Percent)
	}
	fmt.Fprintf(&b, "Habits completed: %d\n", st.HabitsCompleted)
	fmt.Fprintf(&b, "Longest streak:   %d days\n", st.LongestStreak)
	fmt.Fprintf(&b, "Tasks done:       %d\n", st.TasksCompleted)
	fmt.Fprintf(&b, "Goals achieved:   %d\n", st.GoalsCompleted)
	fmt.Fprintf(&b, "Journal entries:  %d\n", st.JournalEntries)
	return b.String()
}

func (m Model) viewConfirmDelete() string {
	return lipgloss.Place(m.width, m.height-4,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			dangerStyle.Render("Are you sure you want to delete this todo?"),
			"",
			"[y] Yes",
			"[n] No",
		),
	)
}
