package models

import "github.com/julianstephens/habitflow/internal/constants"

type Preferences struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

// UserSettings is the per-user settings document.
type UserSettings struct {
	NutritionGoals NutritionGoals `json:"nutritionGoals"`
	Preferences    Preferences    `json:"preferences"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
}

func DefaultUserSettings() UserSettings {
	return UserSettings{
		NutritionGoals: DefaultNutritionGoals(),
		Preferences: Preferences{
			Theme:         constants.DefaultTheme,
			Notifications: constants.DefaultNotifications,
		},
	}
}
