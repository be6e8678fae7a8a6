package models

type SchoolAssignment struct {
	Meta
	Title     string `json:"title"`
	Subject   string `json:"subject"`
	DueDate   string `json:"due_date,omitempty"` // YYYY-MM-DD
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

func (a SchoolAssignment) Validate() error {
	if err := required("school assignment", "title", a.Title); err != nil {
		return err
	}
	if err := required("school assignment", "subject", a.Subject); err != nil {
		return err
	}
	return checkDate("school assignment", "due_date", a.DueDate)
}
