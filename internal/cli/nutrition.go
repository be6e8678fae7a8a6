package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

type NutritionCmd struct {
	Show NutritionShowCmd `cmd:"" help:"Show today's intake against your goals." default:"1"`
	Set  NutritionSetCmd  `cmd:"" help:"Update nutrition goals."`
}

type NutritionShowCmd struct {
	Date string `short:"d" help:"Day to show (YYYY-MM-DD)." default:"today"`
}

func (cmd *NutritionShowCmd) Run(ctx *Context) error {
	day, err := parseDate(cmd.Date)
	if err != nil {
		return err
	}
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	st := s.State()
	goals := st.NutritionGoals

	var cal, protein, carbs, fat, water float64
	for _, m := range st.MealEntries {
		if onDay(m.Timestamp, m.CreatedAt, day) {
			cal += m.Calories
			protein += m.Protein
			carbs += m.Carbs
			fat += m.Fat
		}
	}
	for _, w := range st.WaterEntries {
		if onDay(w.Timestamp, w.CreatedAt, day) {
			water += w.Amount
		}
	}

	ctx.printf("Nutrition for %s:\n", day)
	ctx.printf("  Calories: %6.0f / %.0f\n", cal, goals.DailyCalories)
	ctx.printf("  Protein:  %6.0f / %.0f g\n", protein, goals.DailyProtein)
	ctx.printf("  Carbs:    %6.0f / %.0f g\n", carbs, goals.DailyCarbs)
	ctx.printf("  Fat:      %6.0f / %.0f g\n", fat, goals.DailyFat)
	ctx.printf("  Water:    %6.1f / %.1f %s\n", water, goals.DailyWater, goals.WaterUnit)
	return nil
}

// onDay reports whether an entry belongs to day, preferring its own
// timestamp over the record creation time.
func onDay(timestamp, createdAt, day string) bool {
	ts := timestamp
	if ts == "" {
		ts = createdAt
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return strings.HasPrefix(ts, day)
	}
	return t.Local().Format(constants.DateFormat) == day
}

type NutritionSetCmd struct {
	Calories  *float64 `help:"Daily calories."`
	Protein   *float64 `help:"Daily protein (g)."`
	Carbs     *float64 `help:"Daily carbs (g)."`
	Fat       *float64 `help:"Daily fat (g)."`
	Water     *float64 `help:"Daily water."`
	WaterUnit string   `help:"Water unit (oz|ml|l|cups)."`
}

func (cmd *NutritionSetCmd) Run(ctx *Context) error {
	patch := models.Patch{}
	set := func(field string, v *float64) {
		if v != nil {
			patch[field] = *v
		}
	}
	set("daily_calories", cmd.Calories)
	set("daily_protein", cmd.Protein)
	set("daily_carbs", cmd.Carbs)
	set("daily_fat", cmd.Fat)
	set("daily_water", cmd.Water)
	if cmd.WaterUnit != "" {
		patch["water_unit"] = cmd.WaterUnit
	}
	if len(patch) == 0 {
		ctx.printf("Nothing to update\n")
		return nil
	}
	if _, err := ctx.dispatch(context.Background(), state.UpdateNutritionGoals{Updates: patch}); err != nil {
		return err
	}
	ctx.printf("✓ Nutrition goals updated\n")
	return nil
}

type MealCmd struct {
	Add MealAddCmd `cmd:"" help:"Log a meal."`
}

type MealAddCmd struct {
	Name     string  `arg:"" help:"Meal name."`
	Type     string  `short:"t" help:"Meal type (breakfast|lunch|dinner|snack)."`
	Calories float64 `short:"c" help:"Calories."`
	Protein  float64 `short:"p" help:"Protein (g)."`
	Carbs    float64 `help:"Carbs (g)."`
	Fat      float64 `help:"Fat (g)."`
}

func (cmd *MealAddCmd) Validate() error {
	switch cmd.Type {
	case "", "breakfast", "lunch", "dinner", "snack":
		return nil
	}
	return fmt.Errorf("meal type must be breakfast, lunch, dinner or snack")
}

func (cmd *MealAddCmd) Run(ctx *Context) error {
	meal := models.MealEntry{
		Name:      cmd.Name,
		MealType:  cmd.Type,
		Calories:  cmd.Calories,
		Protein:   cmd.Protein,
		Carbs:     cmd.Carbs,
		Fat:       cmd.Fat,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if _, err := ctx.dispatch(context.Background(), state.Add(state.MealEntries, meal)); err != nil {
		return err
	}
	ctx.printf("Logged meal: %s (%.0f kcal)\n", meal.Name, meal.Calories)
	return nil
}

type WaterCmd struct {
	Add WaterAddCmd `cmd:"" help:"Log water intake."`
}

type WaterAddCmd struct {
	Amount float64 `arg:"" help:"Amount."`
	Unit   string  `short:"u" help:"Unit. Defaults to the unit in your nutrition goals."`
}

func (cmd *WaterAddCmd) Run(ctx *Context) error {
	c := context.Background()
	s, err := ctx.Ready(c)
	if err != nil {
		return err
	}
	unit := cmd.Unit
	if unit == "" {
		unit = s.State().NutritionGoals.WaterUnit
	}
	entry := models.WaterEntry{Amount: cmd.Amount, Unit: unit, Timestamp: time.Now().Format(time.RFC3339)}
	if _, err := ctx.dispatch(c, state.Add(state.WaterEntries, entry)); err != nil {
		return err
	}
	ctx.printf("Logged water: %.1f %s\n", entry.Amount, entry.Unit)
	return nil
}
