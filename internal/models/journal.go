package models

type JournalEntry struct {
	Meta
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Mood      string `json:"mood,omitempty"`
	CreatedBy string `json:"created_by,omitempty"` // author email
}

func (j JournalEntry) Validate() error {
	return required("journal entry", "content", j.Content)
}
