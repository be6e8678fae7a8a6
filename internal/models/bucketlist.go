package models

type BucketListItem struct {
	Meta
	Title      string `json:"title"`
	Category   string `json:"category,omitempty"`
	Completed  bool   `json:"completed"`
	TargetDate string `json:"target_date,omitempty"` // YYYY-MM-DD
	PhotoURL   string `json:"photo_url,omitempty"`
}

func (b BucketListItem) Validate() error {
	if err := required("bucket list item", "title", b.Title); err != nil {
		return err
	}
	return checkDate("bucket list item", "target_date", b.TargetDate)
}
