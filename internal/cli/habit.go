package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

type HabitCmd struct {
	Catalog HabitCatalogCmd `cmd:"" help:"Show the built-in habit catalog."`
	Adopt   HabitAdoptCmd   `cmd:"" help:"Start tracking a catalog habit."`
	Log     HabitLogCmd     `cmd:"" help:"Record a habit for a day."`
	List    HabitListCmd    `cmd:"" help:"List tracked habits." default:"1"`
}

type HabitCatalogCmd struct {
	Verbose bool `short:"v" help:"Show techniques and benefits."`
}

func (cmd *HabitCatalogCmd) Run(ctx *Context) error {
	for _, h := range models.Catalog() {
		ctx.printf("%-9s %s %s (%s, %s)\n", h.ID, h.Icon, h.Title, h.Category, h.Type)
		if !cmd.Verbose {
			continue
		}
		ctx.printf("          %s\n", h.Description)
		for _, t := range h.Techniques {
			ctx.printf("          • %s: %s\n", t.Name, t.Description)
		}
		if len(h.Benefits) > 0 {
			ctx.printf("          Benefits: %s\n", strings.Join(h.Benefits, ", "))
		}
	}
	return nil
}

type HabitAdoptCmd struct {
	HabitID   string `arg:"" help:"Catalog habit ID (see 'habit catalog')."`
	Title     string `help:"Custom title."`
	Frequency string `short:"f" help:"Frequency (daily|weekly|weekdays)." enum:"daily,weekly,weekdays" default:"daily"`
	Days      string `short:"w" help:"Comma-separated weekdays for weekly habits."`
	Time      string `short:"t" help:"Time of day (HH:MM)."`
	Minutes   int    `short:"m" help:"Target minutes per session."`
}

func (cmd *HabitAdoptCmd) Run(ctx *Context) error {
	c := context.Background()
	habit, ok := models.FindCatalogHabit(cmd.HabitID)
	if !ok {
		return fmt.Errorf("no catalog habit with id %q", cmd.HabitID)
	}
	days, err := parseDays(cmd.Days)
	if err != nil {
		return err
	}
	s, err := ctx.Ready(c)
	if err != nil {
		return err
	}
	for _, uh := range s.State().UserHabits {
		if uh.HabitID == habit.ID && uh.Active {
			return fmt.Errorf("already tracking %s (ID: %s)", habit.Title, shortID(uh.ID))
		}
	}

	title := cmd.Title
	if title == "" {
		title = habit.Title
	}
	uh := models.UserHabit{
		HabitID: habit.ID,
		Title:   title,
		Schedule: models.Schedule{
			Frequency:     cmd.Frequency,
			Days:          days,
			Time:          cmd.Time,
			TargetMinutes: cmd.Minutes,
		},
		Active: true,
	}
	out, err := ctx.dispatch(c, state.Add(state.UserHabits, uh))
	if err != nil {
		return err
	}
	added := out.Action.(state.AddAction[models.UserHabit]).Item
	ctx.printf("%s Tracking %s (ID: %s)\n", habit.Icon, added.Title, shortID(added.ID))
	return nil
}

type HabitLogCmd struct {
	Habit  string `arg:"" help:"Catalog habit ID or tracked habit ID prefix."`
	Date   string `short:"d" help:"Day to record (YYYY-MM-DD)." default:"today"`
	Note   string `short:"n" help:"Note."`
	Missed bool   `help:"Record the day as missed."`
}

func (cmd *HabitLogCmd) Run(ctx *Context) error {
	c := context.Background()
	date, err := parseDate(cmd.Date)
	if err != nil {
		return err
	}
	s, err := ctx.Ready(c)
	if err != nil {
		return err
	}
	st := s.State()

	habitID := cmd.Habit
	if _, ok := models.FindCatalogHabit(habitID); !ok {
		uh, err := resolve(st.UserHabits, cmd.Habit)
		if err != nil {
			return err
		}
		habitID = uh.HabitID
	}
	for _, l := range st.HabitLogs {
		if l.HabitID == habitID && l.Date == date {
			return fmt.Errorf("%s is already recorded for %s", habitID, date)
		}
	}

	entry := models.HabitLog{HabitID: habitID, Date: date, Completed: !cmd.Missed, Note: cmd.Note}
	if _, err := ctx.dispatch(c, state.Add(state.HabitLogs, entry)); err != nil {
		return err
	}
	ctx.printf("%s %s on %s\n", checkbox(entry.Completed), habitID, date)
	return nil
}

type HabitListCmd struct{}

func (cmd *HabitListCmd) Run(ctx *Context) error {
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	st := s.State()
	if len(st.UserHabits) == 0 {
		ctx.printf("No tracked habits. Adopt one from 'habitflow habit catalog'.\n")
		return nil
	}

	day := today()
	done := make(map[string]bool)
	for _, l := range st.HabitLogs {
		if l.Date == day && l.Completed {
			done[l.HabitID] = true
		}
	}
	for _, h := range st.UserHabits {
		status := checkbox(done[h.HabitID])
		if !h.Active {
			status = "[-]"
		}
		ctx.printf("  %s %s  %s (%s)", status, shortID(h.ID), h.Title, h.Schedule.Frequency)
		if h.Schedule.Time != "" {
			ctx.printf(" at %s", h.Schedule.Time)
		}
		ctx.printf(" streak %d, best %d\n", h.StreakCurrent, h.StreakLongest)
	}
	return nil
}
