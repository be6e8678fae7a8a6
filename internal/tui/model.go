package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/state"
	"github.com/julianstephens/habitflow/internal/store"
	"github.com/julianstephens/habitflow/internal/tui/components/goals"
	"github.com/julianstephens/habitflow/internal/tui/components/habits"
	"github.com/julianstephens/habitflow/internal/tui/components/todolist"
)

// tabCount is the number of tabbed views: todos, goals, habits and sync.
const tabCount = 4

// Dispatcher is the store surface the dashboard drives.
type Dispatcher interface {
	State() state.State
	SyncStatus() store.SyncStatus
	Dispatch(ctx context.Context, a state.Action) (store.Outcome, error)
}

// StateMsg carries a state change published by the store.
type StateMsg struct {
	State state.State
	Sync  store.SyncStatus
}

type dispatchedMsg struct {
	outcome store.Outcome
	err     error
}

type TodoFormModel struct {
	Title    string
	Priority string
	DueDate  string
}

type Model struct {
	ctx            context.Context
	store          Dispatcher
	state          constants.SessionState
	keys           KeyMap
	help           help.Model
	todoList       todolist.Model
	goalsModel     goals.Model
	habitsModel    habits.Model
	form           *huh.Form
	todoForm       *TodoFormModel
	todoToDeleteID string
	current        state.State
	sync           store.SyncStatus
	message        string
	quitting       bool
	width          int
	height         int
	now            func() time.Time
}

func NewModel(ctx context.Context, s Dispatcher) Model {
	m := Model{
		ctx:         ctx,
		store:       s,
		state:       constants.StateTodos,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		todoList:    todolist.New(nil, 0, 0),
		goalsModel:  goals.New(0, 0),
		habitsModel: habits.New(),
		now:         time.Now,
	}
	m.refresh(s.State(), s.SyncStatus())
	return m
}

func (m *Model) refresh(st state.State, sync store.SyncStatus) {
	m.current = st
	m.sync = sync
	m.todoList.SetTodos(st.Todos)
	m.goalsModel.SetGoals(st.Goals)
	m.habitsModel.SetHabits(st.UserHabits, st.HabitLogs, m.now().Format(constants.DateFormat))
}

func (m Model) dispatch(a state.Action) tea.Cmd {
	ctx, s := m.ctx, m.store
	return func() tea.Msg {
		out, err := s.Dispatch(ctx, a)
		return dispatchedMsg{outcome: out, err: err}
	}
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	switch m.state {
	case constants.StateTodos:
		keys = append(keys, m.keys.Add, m.keys.Toggle, m.keys.Delete)
	case constants.StateGoals:
		keys = append(keys, m.keys.Increase, m.keys.Decrease)
	case constants.StateHabits:
		keys = append(keys, m.keys.Complete)
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help}
	navigation := []key.Binding{m.keys.Up, m.keys.Down}
	actions := []key.Binding{m.keys.Add, m.keys.Toggle, m.keys.Delete, m.keys.Increase, m.keys.Decrease, m.keys.Complete}
	return [][]key.Binding{global, navigation, actions}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Run starts the dashboard over s and blocks until it exits.
func Run(ctx context.Context, s *store.Store) error {
	p := tea.NewProgram(NewModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := s.Subscribe(func(st state.State) {
		p.Send(StateMsg{State: st, Sync: s.SyncStatus()})
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}
