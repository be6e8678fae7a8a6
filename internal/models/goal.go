package models

import "math"

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
)

type Milestone struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Goal struct {
	Meta
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	Status      GoalStatus  `json:"status,omitempty"`
	Progress    int         `json:"progress"` // percent, 0-100
	Milestones  []Milestone `json:"milestones,omitempty"`
	TargetDate  string      `json:"target_date,omitempty"` // YYYY-MM-DD
}

func (g Goal) Validate() error {
	if err := required("goal", "title", g.Title); err != nil {
		return err
	}
	switch g.Status {
	case "", GoalActive, GoalCompleted, GoalPaused:
	default:
		return invalid("goal status %q must be active, completed or paused", g.Status)
	}
	if g.Progress < 0 || g.Progress > 100 {
		return invalid("goal progress %d must be between 0 and 100", g.Progress)
	}
	for i, m := range g.Milestones {
		if err := required("goal", "milestone title", m.Title); err != nil {
			return invalid("goal milestone %d: title is required", i)
		}
	}
	return checkDate("goal", "target_date", g.TargetDate)
}

// ComputeProgress returns the milestone completion ratio as a rounded
// percentage. Goals without milestones keep their stored progress.
func (g Goal) ComputeProgress() int {
	if len(g.Milestones) == 0 {
		return g.Progress
	}
	done := 0
	for _, m := range g.Milestones {
		if m.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(g.Milestones)) * 100))
}
