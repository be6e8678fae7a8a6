package models

type Todo struct {
	Meta
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Priority  string `json:"priority,omitempty"` // low, medium, high
	DueDate   string `json:"due_date,omitempty"` // YYYY-MM-DD
}

func (t Todo) Validate() error {
	if err := required("todo", "title", t.Title); err != nil {
		return err
	}
	switch t.Priority {
	case "", "low", "medium", "high":
	default:
		return invalid("todo priority %q must be low, medium or high", t.Priority)
	}
	return checkDate("todo", "due_date", t.DueDate)
}
