package state

import "github.com/julianstephens/habitflow/internal/models"

// Stats is the lifetime summary shown on the stats page.
type Stats struct {
	HabitsCompleted int                   `json:"habitsCompleted"`
	LongestStreak   int                   `json:"longestStreak"`
	TasksCompleted  int                   `json:"tasksCompleted"`
	GoalsCompleted  int                   `json:"goalsCompleted"`
	JournalEntries  int                   `json:"journalEntries"`
	Level           *models.LevelProgress `json:"level,omitempty"`
}

// ComputeStats summarises s. Level is nil while signed out.
func ComputeStats(s State) Stats {
	var st Stats
	for _, h := range s.UserHabits {
		st.HabitsCompleted += h.TotalCompletions
		st.LongestStreak = max(st.LongestStreak, h.StreakLongest)
	}
	for _, t := range s.Todos {
		if t.Completed {
			st.TasksCompleted++
		}
	}
	for _, g := range s.Goals {
		if g.Status == models.GoalCompleted {
			st.GoalsCompleted++
		}
	}
	st.JournalEntries = len(s.JournalEntries)
	if s.User != nil {
		p := s.User.Progress()
		st.Level = &p
	}
	return st
}
