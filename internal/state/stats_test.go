package state

import (
	"testing"

	"github.com/julianstephens/habitflow/internal/models"
)

func TestComputeStats(t *testing.T) {
	s := Default()
	if st := ComputeStats(s); st != (Stats{}) {
		t.Errorf("empty state stats = %+v, want zero", st)
	}

	s.User = &models.Identity{ID: "u1", Level: 2, XP: 160}
	s.UserHabits = []models.UserHabit{
		{TotalCompletions: 12, StreakLongest: 5},
		{TotalCompletions: 3, StreakLongest: 9},
	}
	s.Todos = []models.Todo{{Title: "a", Completed: true}, {Title: "b"}, {Title: "c", Completed: true}}
	s.Goals = []models.Goal{{Title: "a", Status: models.GoalCompleted}, {Title: "b", Status: models.GoalActive}}
	s.JournalEntries = []models.JournalEntry{{Content: "x"}}

	st := ComputeStats(s)
	want := Stats{HabitsCompleted: 15, LongestStreak: 9, TasksCompleted: 2, GoalsCompleted: 1, JournalEntries: 1}
	got := st
	got.Level = nil
	if got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
	if st.Level == nil || st.Level.Floor != 100 || st.Level.Next != 220 || st.Level.Percent != 50 {
		t.Errorf("level progress = %+v, want floor 100, next 220, 50%%", st.Level)
	}
}
