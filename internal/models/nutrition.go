package models

import "github.com/julianstephens/habitflow/internal/constants"

type MealEntry struct {
	Meta
	Name      string  `json:"name"`
	MealType  string  `json:"meal_type,omitempty"` // breakfast, lunch, dinner, snack
	Calories  float64 `json:"calories"`
	Protein   float64 `json:"protein"`
	Carbs     float64 `json:"carbs"`
	Fat       float64 `json:"fat"`
	Timestamp string  `json:"timestamp,omitempty"` // RFC3339
}

func (m MealEntry) Validate() error {
	if err := required("meal entry", "name", m.Name); err != nil {
		return err
	}
	if m.Calories < 0 || m.Protein < 0 || m.Carbs < 0 || m.Fat < 0 {
		return invalid("meal entry quantities must not be negative")
	}
	return nil
}

type WaterEntry struct {
	Meta
	Amount    float64 `json:"amount"`
	Unit      string  `json:"unit,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"` // RFC3339
}

func (w WaterEntry) Validate() error {
	if w.Amount <= 0 {
		return invalid("water entry amount must be positive")
	}
	return nil
}

// NutritionGoals is a per-user singleton. Updates merge into the existing
// value; it is never replaced wholesale.
type NutritionGoals struct {
	DailyCalories float64 `json:"daily_calories"`
	DailyProtein  float64 `json:"daily_protein"`
	DailyCarbs    float64 `json:"daily_carbs"`
	DailyFat      float64 `json:"daily_fat"`
	DailyWater    float64 `json:"daily_water"`
	WaterUnit     string  `json:"water_unit"`
}

func DefaultNutritionGoals() NutritionGoals {
	return NutritionGoals{
		DailyCalories: constants.DefaultDailyCalories,
		DailyProtein:  constants.DefaultDailyProtein,
		DailyCarbs:    constants.DefaultDailyCarbs,
		DailyFat:      constants.DefaultDailyFat,
		DailyWater:    constants.DefaultDailyWater,
		WaterUnit:     constants.DefaultWaterUnit,
	}
}

func (g NutritionGoals) Validate() error {
	if g.DailyCalories < 0 || g.DailyProtein < 0 || g.DailyCarbs < 0 || g.DailyFat < 0 || g.DailyWater < 0 {
		return invalid("nutrition goals must not be negative")
	}
	switch g.WaterUnit {
	case "", "oz", "ml", "l", "cups":
	default:
		return invalid("nutrition goals water_unit %q is not supported", g.WaterUnit)
	}
	return nil
}
