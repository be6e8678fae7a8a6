package models

// ReflectionQuestion is one prompt of the end-of-day reflection.
type ReflectionQuestion struct {
	Key    string
	Prompt string
}

var ReflectionQuestions = []ReflectionQuestion{
	{Key: "went_well", Prompt: "What went well today?"},
	{Key: "went_better", Prompt: "What could have gone better?"},
	{Key: "learned", Prompt: "What did I learn today?"},
	{Key: "felt", Prompt: "How did I feel overall?"},
}

// DailyReflection holds answers keyed by question key. At most one per user
// per date is expected; the store does not enforce it.
type DailyReflection struct {
	Meta
	Date    string            `json:"date"` // YYYY-MM-DD
	Answers map[string]string `json:"answers,omitempty"`
}

func (r DailyReflection) Validate() error {
	if err := required("daily reflection", "date", r.Date); err != nil {
		return err
	}
	return checkDate("daily reflection", "date", r.Date)
}
