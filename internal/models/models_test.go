package models

import (
	"errors"
	"testing"
	"time"
)

func TestApply(t *testing.T) {
	goal := Goal{
		Meta:     Meta{ID: "g1", CreatedAt: "2026-01-01T00:00:00Z"},
		Title:    "Run a marathon",
		Category: "fitness",
		Status:   GoalActive,
		Progress: 40,
	}

	t.Run("merges top-level fields", func(t *testing.T) {
		updated, err := Apply(goal, Patch{"progress": 70})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if updated.Progress != 70 {
			t.Errorf("Progress = %d, want 70", updated.Progress)
		}
		if updated.Title != goal.Title || updated.Category != goal.Category || updated.Status != goal.Status {
			t.Errorf("untouched fields changed: %+v", updated)
		}
		if updated.CreatedAt != goal.CreatedAt {
			t.Errorf("CreatedAt = %q, want %q", updated.CreatedAt, goal.CreatedAt)
		}
	})

	t.Run("ignores id", func(t *testing.T) {
		updated, err := Apply(goal, Patch{"id": "other", "title": "Run two marathons"})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if updated.ID != "g1" {
			t.Errorf("ID = %q, want g1", updated.ID)
		}
		if updated.Title != "Run two marathons" {
			t.Errorf("Title = %q", updated.Title)
		}
	})

	t.Run("replaces nested values wholesale", func(t *testing.T) {
		withMilestones := goal
		withMilestones.Milestones = []Milestone{{Title: "5k"}, {Title: "10k"}}
		updated, err := Apply(withMilestones, Patch{"milestones": []Milestone{{Title: "half", Completed: true}}})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if len(updated.Milestones) != 1 || !updated.Milestones[0].Completed {
			t.Errorf("Milestones = %+v", updated.Milestones)
		}
	})

	t.Run("type mismatch leaves value untouched", func(t *testing.T) {
		updated, err := Apply(goal, Patch{"progress": "lots"})
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("Apply() error = %v, want ErrInvalid", err)
		}
		if updated.Progress != 40 {
			t.Errorf("Progress = %d, want 40", updated.Progress)
		}
	})

	t.Run("empty patch", func(t *testing.T) {
		updated, err := Apply(goal, nil)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if updated.Title != goal.Title {
			t.Errorf("Title = %q", updated.Title)
		}
	})
}

func TestNutritionGoalsMerge(t *testing.T) {
	goals := DefaultNutritionGoals()
	updated, err := Apply(goals, Patch{"daily_calories": 1800})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if updated.DailyCalories != 1800 {
		t.Errorf("DailyCalories = %v, want 1800", updated.DailyCalories)
	}
	if updated.DailyProtein != goals.DailyProtein || updated.WaterUnit != goals.WaterUnit {
		t.Errorf("merge dropped fields: %+v", updated)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"todo ok", Todo{Title: "Buy milk"}, false},
		{"todo missing title", Todo{Title: "  "}, true},
		{"todo bad priority", Todo{Title: "x", Priority: "urgent"}, true},
		{"todo bad due date", Todo{Title: "x", DueDate: "tomorrow"}, true},
		{"goal ok", Goal{Title: "Read", Progress: 100}, false},
		{"goal progress out of range", Goal{Title: "Read", Progress: 101}, true},
		{"goal bad status", Goal{Title: "Read", Status: "someday"}, true},
		{"goal empty milestone", Goal{Title: "Read", Milestones: []Milestone{{Title: ""}}}, true},
		{"event ok", CalendarEvent{Title: "Dentist", StartDate: "2026-10-20", StartTime: "09:30"}, false},
		{"event end before start", CalendarEvent{Title: "Trip", StartDate: "2026-10-20", EndDate: "2026-10-19"}, true},
		{"event bad recurrence", CalendarEvent{Title: "Gym", StartDate: "2026-10-20", Recurrence: Recurrence{IsRecurring: true, Type: "hourly"}}, true},
		{"event bad time", CalendarEvent{Title: "Gym", StartDate: "2026-10-20", StartTime: "25:00"}, true},
		{"finance ok", FinanceTransaction{Type: TransactionExpense, Category: "Food", Amount: 12.5, Date: "2026-10-01"}, false},
		{"finance bad type", FinanceTransaction{Type: "gift", Category: "Food", Amount: 1, Date: "2026-10-01"}, true},
		{"finance negative", FinanceTransaction{Type: TransactionIncome, Category: "Job", Amount: -1, Date: "2026-10-01"}, true},
		{"water zero", WaterEntry{Amount: 0}, true},
		{"meal ok", MealEntry{Name: "Oats", Calories: 300}, false},
		{"letter missing unlock", FutureLetter{Content: "hi"}, true},
		{"reflection ok", DailyReflection{Date: "2026-10-17", Answers: map[string]string{"felt": "good"}}, false},
		{"habit log missing date", HabitLog{HabitID: "h"}, true},
		{"user habit bad day", UserHabit{HabitID: "habit-1", Schedule: Schedule{Days: []int{7}}}, true},
		{"assignment missing subject", SchoolAssignment{Title: "Essay"}, true},
		{"bucket ok", BucketListItem{Title: "See aurora"}, false},
		{"budget negative", Budget{Category: "Food", Limit: -5}, true},
		{"journal empty", JournalEntry{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want wrapped ErrInvalid", err)
			}
		})
	}
}

func TestGoalComputeProgress(t *testing.T) {
	g := Goal{Title: "Ship", Progress: 10, Milestones: []Milestone{
		{Title: "a", Completed: true},
		{Title: "b", Completed: true},
		{Title: "c"},
	}}
	if got := g.ComputeProgress(); got != 67 {
		t.Errorf("ComputeProgress() = %d, want 67", got)
	}
	if got := (Goal{Title: "x", Progress: 25}).ComputeProgress(); got != 25 {
		t.Errorf("ComputeProgress() without milestones = %d, want 25", got)
	}
}

func TestFutureLetterUnlocked(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		date string
		want bool
	}{
		{"2026-10-16", true},
		{"2026-10-17", true},
		{"2026-10-18", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := (FutureLetter{UnlockDate: tt.date}).Unlocked(now); got != tt.want {
			t.Errorf("Unlocked(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	txs := []FinanceTransaction{
		{Type: TransactionIncome, Category: "Job", Amount: 1000, Date: "2026-10-01"},
		{Type: TransactionExpense, Category: "Food", Amount: 40, Date: "2026-10-03"},
		{Type: TransactionExpense, Category: "Food", Amount: 10, Date: "2026-10-09"},
		{Type: TransactionExpense, Category: "Rent", Amount: 500, Date: "2026-09-30"},
	}

	october := Summarize(txs, "2026-10")
	if october.Income != 1000 || october.Expense != 50 {
		t.Errorf("October totals = %+v", october)
	}
	if october.ByCategory["Food"] != 50 {
		t.Errorf("Food = %v, want 50", october.ByCategory["Food"])
	}
	if _, ok := october.ByCategory["Rent"]; ok {
		t.Error("September rent leaked into October")
	}

	all := Summarize(txs, "")
	if all.Expense != 550 {
		t.Errorf("all Expense = %v, want 550", all.Expense)
	}
}

func TestIdentityName(t *testing.T) {
	if got := (Identity{Email: "sam@example.com"}).Name(); got != "sam" {
		t.Errorf("Name() = %q, want sam", got)
	}
	if got := (Identity{Email: "sam@example.com", FullName: "Sam Doe"}).Name(); got != "Sam Doe" {
		t.Errorf("Name() = %q, want Sam Doe", got)
	}
}

func TestLevelThreshold(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{0, 100},
		{1, 100},
		{2, 220},
		{3, 360},
		{10, 1900},
		{50, 29500},
		{99, 29500},
	}
	for _, tt := range tests {
		if got := LevelThreshold(tt.level); got != tt.want {
			t.Errorf("LevelThreshold(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestIdentityProgress(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want LevelProgress
	}{
		{"new user", Identity{}, LevelProgress{Level: 1, Next: 100}},
		{"mid level", Identity{Level: 1, XP: 25}, LevelProgress{Level: 1, XP: 25, Next: 100, Percent: 25}},
		{"second level", Identity{Level: 2, XP: 160}, LevelProgress{Level: 2, XP: 160, Floor: 100, Next: 220, Percent: 50}},
		{"overflow clamps", Identity{Level: 1, XP: 500}, LevelProgress{Level: 1, XP: 500, Next: 100, Percent: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Progress(); got != tt.want {
				t.Errorf("Progress() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
