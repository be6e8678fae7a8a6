package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
	"github.com/julianstephens/habitflow/internal/tui/components/goals"
	"github.com/julianstephens/habitflow/internal/tui/components/habits"
	"github.com/julianstephens/habitflow/internal/tui/components/todolist"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		h, v := docStyle.GetFrameSize()
		m.todoList.SetSize(msg.Width-h, msg.Height-v-4)
		m.goalsModel.SetSize(msg.Width-h, msg.Height-v-4)
		return m, nil

	case StateMsg:
		m.refresh(msg.State, msg.Sync)
		return m, nil

	case dispatchedMsg:
		switch {
		case msg.err != nil:
			m.message = dangerStyle.Render("✗ " + msg.err.Error())
		case msg.outcome.Degraded():
			m.message = warnStyle.Render("saved locally, remote sync failed: " + msg.outcome.Err.Error())
		default:
			m.message = ""
		}
		m.refresh(m.store.State(), m.store.SyncStatus())
		return m, nil
	}

	switch m.state {
	case constants.StateAddTodo:
		return m.updateAddTodo(msg)
	case constants.StateConfirmDelete:
		return m.updateConfirmDelete(msg)
	}

	if handled, cmd := m.handleComponentMsg(msg); handled {
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			m.state = (m.state + 1) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.ShiftTab):
			m.state = (m.state - 1 + tabCount) % tabCount
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case constants.StateTodos:
		m.todoList, cmd = m.todoList.Update(msg)
	case constants.StateGoals:
		m.goalsModel, cmd = m.goalsModel.Update(msg)
	case constants.StateHabits:
		m.habitsModel, cmd = m.habitsModel.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleComponentMsg(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case todolist.AddTodoMsg:
		m.todoForm = &TodoFormModel{}
		m.form = newTodoForm(m.todoForm)
		m.state = constants.StateAddTodo
		return true, m.form.Init()
	case todolist.ToggleTodoMsg:
		return true, m.dispatch(state.Update(state.Todos, msg.ID, models.Patch{"completed": msg.Completed}))
	case todolist.DeleteTodoMsg:
		m.todoToDeleteID = msg.ID
		m.state = constants.StateConfirmDelete
		return true, nil
	case goals.SetProgressMsg:
		return true, m.dispatch(state.Update(state.Goals, msg.ID, models.Patch{"progress": msg.Progress}))
	case habits.LogHabitMsg:
		entry := models.HabitLog{
			HabitID:   msg.HabitID,
			Date:      m.now().Format(constants.DateFormat),
			Completed: true,
		}
		return true, m.dispatch(state.Add(state.HabitLogs, entry))
	}
	return false, nil
}

func (m Model) updateAddTodo(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = constants.StateTodos
		return m, nil
	}

	var cmds []tea.Cmd
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	cmds = append(cmds, cmd)

	switch m.form.State {
	case huh.StateCompleted:
		todo := models.Todo{
			Title:    m.todoForm.Title,
			Priority: m.todoForm.Priority,
			DueDate:  m.todoForm.DueDate,
		}
		if err := todo.Validate(); err != nil {
			// Stay in the form so the entry can be corrected
			m.message = dangerStyle.Render(fmt.Sprintf("✗ %v", err))
			m.form.State = huh.StateNormal
			return m, tea.Batch(cmds...)
		}
		m.state = constants.StateTodos
		cmds = append(cmds, m.dispatch(state.Add(state.Todos, todo)))
	case huh.StateAborted:
		m.state = constants.StateTodos
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, m.keys.Confirm):
		id := m.todoToDeleteID
		m.todoToDeleteID = ""
		m.state = constants.StateTodos
		return m, m.dispatch(state.Delete(state.Todos, id))
	case key.Matches(km, m.keys.Cancel):
		m.todoToDeleteID = ""
		m.state = constants.StateTodos
	}
	return m, nil
}
