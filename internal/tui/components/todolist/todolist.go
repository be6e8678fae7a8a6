package todolist

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitflow/internal/models"
)

type AddTodoMsg struct{}

type ToggleTodoMsg struct {
	ID        string
	Completed bool
}

type DeleteTodoMsg struct {
	ID string
}

type Item struct {
	Todo models.Todo
}

func (i Item) Title() string {
	if i.Todo.Completed {
		return "[x] " + i.Todo.Title
	}
	return "[ ] " + i.Todo.Title
}

func (i Item) Description() string {
	var parts []string
	if i.Todo.Priority != "" {
		parts = append(parts, i.Todo.Priority+" priority")
	}
	if i.Todo.DueDate != "" {
		parts = append(parts, "due "+i.Todo.DueDate)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("added %s", dateOf(i.Todo.CreatedAt))
	}
	return strings.Join(parts, " | ")
}

func (i Item) FilterValue() string { return i.Todo.Title }

func dateOf(stamp string) string {
	if len(stamp) >= 10 {
		return stamp[:10]
	}
	return stamp
}

type KeyMap struct {
	Add    key.Binding
	Toggle key.Binding
	Delete key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "x"),
			key.WithHelp("space", "toggle"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(todos []models.Todo, width, height int) Model {
	l := list.New(items(todos), list.NewDefaultDelegate(), width, height)
	l.Title = "Todos"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Add, keys.Toggle, keys.Delete}
	}
	l.AdditionalFullHelpKeys = l.AdditionalShortHelpKeys

	return Model{list: l, keys: keys}
}

func items(todos []models.Todo) []list.Item {
	out := make([]list.Item, len(todos))
	for i, t := range todos {
		out[i] = Item{Todo: t}
	}
	return out
}

func (m *Model) SetTodos(todos []models.Todo) {
	m.list.SetItems(items(todos))
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Add):
			return m, func() tea.Msg { return AddTodoMsg{} }
		case key.Matches(msg, m.keys.Toggle):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return ToggleTodoMsg{ID: i.Todo.ID, Completed: !i.Todo.Completed} }
			}
		case key.Matches(msg, m.keys.Delete):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return DeleteTodoMsg{ID: i.Todo.ID} }
			}
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  No todos yet.\n  Press 'a' to add one."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
