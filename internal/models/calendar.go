package models

// Recurrence is stored as entered; the store never expands instances.
type Recurrence struct {
	IsRecurring bool   `json:"is_recurring"`
	Type        string `json:"recurring_type,omitempty"`  // daily, weekly, monthly, yearly
	Until       string `json:"recurring_until,omitempty"` // YYYY-MM-DD
}

type Reminder struct {
	Enabled       bool `json:"reminder_enabled"`
	MinutesBefore int  `json:"reminder_time,omitempty"`
}

type CalendarEvent struct {
	Meta
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartDate   string     `json:"start_date"`
	StartTime   string     `json:"start_time,omitempty"`
	EndDate     string     `json:"end_date,omitempty"`
	EndTime     string     `json:"end_time,omitempty"`
	Location    string     `json:"location,omitempty"`
	Color       string     `json:"color,omitempty"`
	Recurrence  Recurrence `json:"recurrence"`
	Reminder    Reminder   `json:"reminder"`
}

func (e CalendarEvent) Validate() error {
	if err := required("calendar event", "title", e.Title); err != nil {
		return err
	}
	if err := required("calendar event", "start_date", e.StartDate); err != nil {
		return err
	}
	for field, v := range map[string]string{"start_date": e.StartDate, "end_date": e.EndDate, "recurring_until": e.Recurrence.Until} {
		if err := checkDate("calendar event", field, v); err != nil {
			return err
		}
	}
	if err := checkTime("calendar event", "start_time", e.StartTime); err != nil {
		return err
	}
	if err := checkTime("calendar event", "end_time", e.EndTime); err != nil {
		return err
	}
	if e.EndDate != "" && e.EndDate < e.StartDate {
		return invalid("calendar event end_date %s is before start_date %s", e.EndDate, e.StartDate)
	}
	if e.Recurrence.IsRecurring {
		switch e.Recurrence.Type {
		case "daily", "weekly", "monthly", "yearly":
		default:
			return invalid("calendar event recurring_type %q is not supported", e.Recurrence.Type)
		}
	}
	if e.Reminder.MinutesBefore < 0 {
		return invalid("calendar event reminder_time must not be negative")
	}
	return nil
}
