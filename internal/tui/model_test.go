package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
	"github.com/julianstephens/habitflow/internal/store"
	"github.com/julianstephens/habitflow/internal/tui/components/goals"
	"github.com/julianstephens/habitflow/internal/tui/components/todolist"
)

// run feeds msg to m and then every message its commands produce.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			if _, isBatch := out.(tea.BatchMsg); !isBatch {
				return run(t, m, out)
			}
		}
	}
	return m
}

func seeded(t *testing.T) (*store.Store, models.Todo) {
	t.Helper()
	s := store.New(store.Options{})
	out, err := s.Dispatch(context.Background(), state.Add(state.Todos, models.Todo{Title: "Buy milk"}))
	if err != nil {
		t.Fatal(err)
	}
	todo := out.Action.(state.AddAction[models.Todo]).Item
	return s, todo
}

func TestTabsCycle(t *testing.T) {
	m := NewModel(context.Background(), store.New(store.Options{}))

	tests := []struct {
		key  tea.KeyMsg
		want constants.SessionState
	}{
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateGoals},
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateHabits},
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateSync},
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateTodos},
		{tea.KeyMsg{Type: tea.KeyShiftTab}, constants.StateSync},
	}
	for _, tt := range tests {
		next, _ := m.Update(tt.key)
		m = next.(Model)
		if m.state != tt.want {
			t.Fatalf("after %v state = %v, want %v", tt.key, m.state, tt.want)
		}
	}
}

func TestToggleTodo(t *testing.T) {
	s, todo := seeded(t)
	m := NewModel(context.Background(), s)

	m = run(t, m, todolist.ToggleTodoMsg{ID: todo.ID, Completed: true})

	if !s.State().Todos[0].Completed {
		t.Error("toggle was not dispatched")
	}
	if !m.current.Todos[0].Completed {
		t.Error("model did not refresh after dispatch")
	}
}

func TestDeleteTodoNeedsConfirmation(t *testing.T) {
	s, todo := seeded(t)
	m := NewModel(context.Background(), s)

	m = run(t, m, todolist.DeleteTodoMsg{ID: todo.ID})
	if m.state != constants.StateConfirmDelete {
		t.Fatalf("state = %v, want confirm delete", m.state)
	}

	m = run(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	if m.state != constants.StateTodos || len(s.State().Todos) != 1 {
		t.Fatalf("cancel deleted the todo or left the dialog open")
	}

	m = run(t, m, todolist.DeleteTodoMsg{ID: todo.ID})
	m = run(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	if len(s.State().Todos) != 0 {
		t.Error("confirmed delete was not dispatched")
	}
	if len(m.current.Todos) != 0 {
		t.Error("model still shows the deleted todo")
	}
}

func TestGoalProgress(t *testing.T) {
	s := store.New(store.Options{})
	out, err := s.Dispatch(context.Background(), state.Add(state.Goals, models.Goal{Title: "Run", Progress: 40}))
	if err != nil {
		t.Fatal(err)
	}
	goal := out.Action.(state.AddAction[models.Goal]).Item

	m := NewModel(context.Background(), s)
	run(t, m, goals.SetProgressMsg{ID: goal.ID, Progress: 50})

	if got := s.State().Goals[0].Progress; got != 50 {
		t.Errorf("progress = %d, want 50", got)
	}
}

func TestAddTodoOpensForm(t *testing.T) {
	m := NewModel(context.Background(), store.New(store.Options{}))
	next, _ := m.Update(todolist.AddTodoMsg{})
	m = next.(Model)
	if m.state != constants.StateAddTodo || m.form == nil {
		t.Fatalf("state = %v, form = %v", m.state, m.form)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if next.(Model).state != constants.StateTodos {
		t.Error("esc did not close the form")
	}
}

func TestDispatchErrorShown(t *testing.T) {
	s := store.New(store.Options{})
	out, err := s.Dispatch(context.Background(), state.Add(state.Goals, models.Goal{Title: "Read"}))
	if err != nil {
		t.Fatal(err)
	}
	goal := out.Action.(state.AddAction[models.Goal]).Item

	m := NewModel(context.Background(), s)
	m = run(t, m, goals.SetProgressMsg{ID: goal.ID, Progress: 500})
	if m.message == "" {
		t.Error("invalid dispatch produced no message")
	}
	if got := s.State().Goals[0].Progress; got != 0 {
		t.Errorf("progress = %d, want unchanged", got)
	}
}

func TestSyncTabShowsStats(t *testing.T) {
	s, todo := seeded(t)
	if _, err := s.Dispatch(context.Background(), state.Update(state.Todos, todo.ID, models.Patch{"completed": true})); err != nil {
		t.Fatal(err)
	}
	m := NewModel(context.Background(), s)
	m = run(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.state != constants.StateSync {
		t.Fatalf("state = %v, want sync", m.state)
	}
	view := m.View()
	for _, want := range []string{"Tasks done:       1", "Journal entries:  0"} {
		if !strings.Contains(view, want) {
			t.Errorf("sync view missing %q:\n%s", want, view)
		}
	}
}
