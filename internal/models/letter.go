package models

import (
	"time"

	"github.com/julianstephens/habitflow/internal/constants"
)

type FutureLetter struct {
	Meta
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	UnlockDate string `json:"unlock_date"` // YYYY-MM-DD
}

func (l FutureLetter) Validate() error {
	if err := required("future letter", "content", l.Content); err != nil {
		return err
	}
	if err := required("future letter", "unlock_date", l.UnlockDate); err != nil {
		return err
	}
	return checkDate("future letter", "unlock_date", l.UnlockDate)
}

// Unlocked reports whether the unlock date has passed at now.
func (l FutureLetter) Unlocked(now time.Time) bool {
	unlock, err := time.ParseInLocation(constants.DateFormat, l.UnlockDate, now.Location())
	if err != nil {
		return false
	}
	return !now.Before(unlock)
}
