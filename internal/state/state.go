// Package state holds the in-memory application state, the closed set of
// actions over it and the pure reducer that applies them.
package state

import "github.com/julianstephens/habitflow/internal/models"

// State is the whole in-memory application state. Collections are never
// mutated in place; Reduce always builds new slices for changed kinds.
type State struct {
	User                *models.Identity            `json:"user"`
	Habits              []models.Habit              `json:"habits"`
	UserHabits          []models.UserHabit          `json:"userHabits"`
	HabitLogs           []models.HabitLog           `json:"habitLogs"`
	Todos               []models.Todo               `json:"todos"`
	JournalEntries      []models.JournalEntry       `json:"journalEntries"`
	CalendarEvents      []models.CalendarEvent      `json:"calendarEvents"`
	MealEntries         []models.MealEntry          `json:"mealEntries"`
	WaterEntries        []models.WaterEntry         `json:"waterEntries"`
	NutritionGoals      models.NutritionGoals       `json:"nutritionGoals"`
	Preferences         models.Preferences          `json:"preferences"`
	FinanceTransactions []models.FinanceTransaction `json:"financeTransactions"`
	Budgets             []models.Budget             `json:"budgets"`
	SchoolAssignments   []models.SchoolAssignment   `json:"schoolAssignments"`
	Goals               []models.Goal               `json:"goals"`
	FutureLetters       []models.FutureLetter       `json:"futureLetters"`
	BucketListItems     []models.BucketListItem     `json:"bucketListItems"`
	DailyReflections    []models.DailyReflection    `json:"dailyReflections"`
}

// Partial is the payload of LoadData. A nil field leaves the corresponding
// part of the state untouched; a non-nil slice, even an empty one, replaces
// the collection.
type Partial struct {
	Habits              []models.Habit              `json:"habits"`
	UserHabits          []models.UserHabit          `json:"userHabits"`
	HabitLogs           []models.HabitLog           `json:"habitLogs"`
	Todos               []models.Todo               `json:"todos"`
	JournalEntries      []models.JournalEntry       `json:"journalEntries"`
	CalendarEvents      []models.CalendarEvent      `json:"calendarEvents"`
	MealEntries         []models.MealEntry          `json:"mealEntries"`
	WaterEntries        []models.WaterEntry         `json:"waterEntries"`
	NutritionGoals      *models.NutritionGoals      `json:"nutritionGoals"`
	Preferences         *models.Preferences         `json:"preferences"`
	FinanceTransactions []models.FinanceTransaction `json:"financeTransactions"`
	Budgets             []models.Budget             `json:"budgets"`
	SchoolAssignments   []models.SchoolAssignment   `json:"schoolAssignments"`
	Goals               []models.Goal               `json:"goals"`
	FutureLetters       []models.FutureLetter       `json:"futureLetters"`
	BucketListItems     []models.BucketListItem     `json:"bucketListItems"`
	DailyReflections    []models.DailyReflection    `json:"dailyReflections"`
}

// Default returns the logged-out state: the built-in habit catalog, default
// nutrition goals and preferences, and empty per-user collections.
func Default() State {
	settings := models.DefaultUserSettings()
	s := State{
		Habits:         models.Catalog(),
		NutritionGoals: settings.NutritionGoals,
		Preferences:    settings.Preferences,
	}
	for _, k := range kinds {
		k.reset(&s)
	}
	return s
}

// Clone copies every collection so the result shares no backing arrays
// with s.
func (s State) Clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	out.Habits = append([]models.Habit(nil), s.Habits...)
	for _, k := range kinds {
		k.copyInto(&out, s)
	}
	return out
}

// Snapshot returns every part of s as a Partial, suitable for persisting
// and later rehydrating with LoadData.
func (s State) Snapshot() Partial {
	c := s.Clone()
	goals := c.NutritionGoals
	prefs := c.Preferences
	p := Partial{
		Habits:         c.Habits,
		NutritionGoals: &goals,
		Preferences:    &prefs,
	}
	for _, k := range kinds {
		k.snapshot(&p, c)
	}
	return p
}

func (s State) merge(p Partial) State {
	if p.Habits != nil {
		s.Habits = p.Habits
	}
	if p.NutritionGoals != nil {
		s.NutritionGoals = *p.NutritionGoals
	}
	if p.Preferences != nil {
		s.Preferences = *p.Preferences
	}
	for _, k := range kinds {
		k.merge(&s, p)
	}
	return s
}
