package models

// HabitType distinguishes habits being built from habits being broken.
type HabitType string

const (
	HabitBuild HabitType = "build"
	HabitBreak HabitType = "break"
)

type Technique struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	ScientificBacking string `json:"scientific_backing,omitempty"`
}

type Question struct {
	Question string   `json:"question"`
	Type     string   `json:"type"` // time, number, select, text
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required"`
}

// Habit is a built-in catalog template. The catalog is reference data and
// is available whether or not anyone is signed in.
type Habit struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Type        HabitType   `json:"type"`
	Icon        string      `json:"icon,omitempty"`
	Color       string      `json:"color,omitempty"`
	Techniques  []Technique `json:"techniques,omitempty"`
	Benefits    []string    `json:"benefits,omitempty"`
	Questions   []Question  `json:"questions,omitempty"`
}

type Schedule struct {
	Frequency     string `json:"frequency,omitempty"` // daily, weekly, weekdays
	Days          []int  `json:"days,omitempty"`      // 0=Sunday
	Time          string `json:"time,omitempty"`      // HH:MM
	TargetMinutes int    `json:"target_minutes,omitempty"`
}

// UserHabit is a catalog habit adopted by a user. Streak and completion
// counters are maintained by the habit views, not by the store.
type UserHabit struct {
	Meta
	HabitID          string            `json:"habit_id"`
	Title            string            `json:"title,omitempty"`
	Schedule         Schedule          `json:"schedule"`
	Answers          map[string]string `json:"answers,omitempty"`
	StreakCurrent    int               `json:"streak_current"`
	StreakLongest    int               `json:"streak_longest"`
	TotalCompletions int               `json:"total_completions"`
	Active           bool              `json:"active"`
}

func (h UserHabit) Validate() error {
	if err := required("user habit", "habit_id", h.HabitID); err != nil {
		return err
	}
	if err := checkTime("user habit", "schedule.time", h.Schedule.Time); err != nil {
		return err
	}
	for _, d := range h.Schedule.Days {
		if d < 0 || d > 6 {
			return invalid("user habit schedule day %d out of range 0-6", d)
		}
	}
	if h.StreakCurrent < 0 || h.StreakLongest < 0 || h.TotalCompletions < 0 {
		return invalid("user habit counters must not be negative")
	}
	return nil
}

// HabitLog records one habit on one day. Uniqueness per habit and day is
// left to the caller.
type HabitLog struct {
	Meta
	HabitID   string `json:"habit_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Completed bool   `json:"completed"`
	Note      string `json:"note,omitempty"`
}

func (l HabitLog) Validate() error {
	if err := required("habit log", "habit_id", l.HabitID); err != nil {
		return err
	}
	if err := required("habit log", "date", l.Date); err != nil {
		return err
	}
	return checkDate("habit log", "date", l.Date)
}

// Catalog returns a fresh copy of the built-in habit templates.
func Catalog() []Habit {
	return []Habit{
		{
			ID:          "habit-1",
			Title:       "Morning Meditation",
			Description: "Start your day with mindfulness and clarity",
			Category:    "mindfulness",
			Type:        HabitBuild,
			Icon:        "🧘",
			Color:       "purple",
			Techniques: []Technique{{
				Name:              "Breath Awareness",
				Description:       "Focus on your natural breathing pattern",
				ScientificBacking: "Studies show breath awareness reduces cortisol levels by 23%",
			}},
			Benefits: []string{"Reduced stress", "Better focus", "Improved emotional regulation"},
			Questions: []Question{
				{Question: "What time would you like to meditate?", Type: "time", Required: true},
				{Question: "How many minutes?", Type: "number", Required: true},
			},
		},
		{
			ID:          "habit-2",
			Title:       "Daily Exercise",
			Description: "Keep your body active and healthy",
			Category:    "fitness",
			Type:        HabitBuild,
			Icon:        "💪",
			Color:       "red",
			Techniques: []Technique{{
				Name:              "Progressive Overload",
				Description:       "Gradually increase intensity over time",
				ScientificBacking: "Research shows progressive overload increases muscle strength by 40%",
			}},
			Benefits: []string{"Improved cardiovascular health", "Increased energy", "Better sleep"},
			Questions: []Question{
				{Question: "What type of exercise?", Type: "select", Options: []string{"Cardio", "Strength", "Yoga", "Mixed"}, Required: true},
				{Question: "How many minutes?", Type: "number", Required: true},
			},
		},
		{
			ID:          "habit-3",
			Title:       "Quit Social Media Scrolling",
			Description: "Break the habit of mindless scrolling",
			Category:    "breaking",
			Type:        HabitBreak,
			Icon:        "📱",
			Color:       "gray",
			Techniques: []Technique{{
				Name:              "App Blocking",
				Description:       "Use apps to block social media during certain hours",
				ScientificBacking: "Studies show app blocking reduces usage by 60%",
			}},
			Benefits: []string{"Better focus", "Reduced anxiety", "More time for meaningful activities"},
			Questions: []Question{
				{Question: "Which platforms do you want to limit?", Type: "text", Required: true},
				{Question: "Set daily time limit (minutes)", Type: "number", Required: true},
			},
		},
	}
}

// FindCatalogHabit looks up a catalog template by id.
func FindCatalogHabit(id string) (Habit, bool) {
	for _, h := range Catalog() {
		if h.ID == id {
			return h, true
		}
	}
	return Habit{}, false
}
