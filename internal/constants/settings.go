package constants

const (
	// Default nutrition goals written for new accounts and used while logged out
	DefaultDailyCalories = 2000
	DefaultDailyProtein  = 150
	DefaultDailyCarbs    = 250
	DefaultDailyFat      = 65
	DefaultDailyWater    = 64
	DefaultWaterUnit     = "oz"

	// Default preferences
	DefaultTheme         = "light"
	DefaultNotifications = true

	// Default calendar event color tag
	DefaultEventColor = "blue"

	// Minimum password length accepted at sign-up
	MinPasswordLength = 8
)
