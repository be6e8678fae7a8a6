package cli

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/julianstephens/habitflow/internal/state"
)

type StatsCmd struct {
	JSON bool `help:"Print the stats as JSON."`
}

func (cmd *StatsCmd) Run(ctx *Context) error {
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	st := state.ComputeStats(s.State())
	if cmd.JSON {
		return ctx.printJSON(st)
	}

	if lvl := st.Level; lvl != nil {
		bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))
		ctx.printf("Level %d  %s  %d / %d XP\n\n", lvl.Level, bar.ViewAs(lvl.Percent/100), lvl.XP, lvl.Next)
	}
	ctx.printf("Habits completed:  %d\n", st.HabitsCompleted)
	ctx.printf("Longest streak:    %d days\n", st.LongestStreak)
	ctx.printf("Tasks done:        %d\n", st.TasksCompleted)
	ctx.printf("Goals achieved:    %d\n", st.GoalsCompleted)
	ctx.printf("Journal entries:   %d\n", st.JournalEntries)
	return nil
}
