package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/julianstephens/habitflow/internal/models"
	"github.com/julianstephens/habitflow/internal/state"
)

type GoalCmd struct {
	Add       GoalAddCmd       `cmd:"" help:"Add a goal."`
	List      GoalListCmd      `cmd:"" help:"List goals." default:"1"`
	Progress  GoalProgressCmd  `cmd:"" help:"Set a goal's progress percentage."`
	Milestone GoalMilestoneCmd `cmd:"" help:"Add a milestone to a goal."`
	Toggle    GoalToggleCmd    `cmd:"" help:"Toggle a milestone's completion."`
	Delete    GoalDeleteCmd    `cmd:"" help:"Delete a goal."`
}

type GoalAddCmd struct {
	Title       string   `arg:"" help:"Goal title."`
	Description string   `short:"D" help:"Description."`
	Category    string   `short:"c" help:"Category."`
	Target      string   `short:"t" help:"Target date (YYYY-MM-DD)."`
	Milestones  []string `short:"m" name:"milestone" help:"Milestone title (repeatable)."`
}

func (cmd *GoalAddCmd) Run(ctx *Context) error {
	target, err := parseDate(cmd.Target)
	if err != nil {
		return err
	}
	goal := models.Goal{
		Title:       cmd.Title,
		Description: cmd.Description,
		Category:    cmd.Category,
		Status:      models.GoalActive,
		TargetDate:  target,
	}
	for _, m := range cmd.Milestones {
		goal.Milestones = append(goal.Milestones, models.Milestone{Title: m})
	}
	out, err := ctx.dispatch(context.Background(), state.Add(state.Goals, goal))
	if err != nil {
		return err
	}
	added := out.Action.(state.AddAction[models.Goal]).Item
	ctx.printf("Added goal: %s (ID: %s)\n", added.Title, shortID(added.ID))
	return nil
}

type GoalListCmd struct{}

func (cmd *GoalListCmd) Run(ctx *Context) error {
	s, err := ctx.Ready(context.Background())
	if err != nil {
		return err
	}
	goals := s.State().Goals
	if len(goals) == 0 {
		ctx.printf("No goals found\n")
		return nil
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))
	for _, g := range goals {
		status := g.Status
		if status == "" {
			status = models.GoalActive
		}
		ctx.printf("%s  %s [%s]\n", shortID(g.ID), g.Title, status)
		ctx.printf("    %s\n", bar.ViewAs(float64(g.Progress)/100))
		for i, m := range g.Milestones {
			ctx.printf("    %d. %s %s\n", i+1, checkbox(m.Completed), m.Title)
		}
		if g.TargetDate != "" {
			ctx.printf("    target %s\n", g.TargetDate)
		}
	}
	return nil
}

type GoalProgressCmd struct {
	ID      string `arg:"" help:"Goal ID or unique prefix."`
	Percent int    `arg:"" help:"Progress percentage (0-100)."`
}

func (cmd *GoalProgressCmd) Run(ctx *Context) error {
	patch := models.Patch{"progress": cmd.Percent}
	if cmd.Percent >= 100 {
		patch["status"] = models.GoalCompleted
	}
	goal, err := updateGoal(ctx, cmd.ID, func(models.Goal) models.Patch { return patch })
	if err != nil {
		return err
	}
	ctx.printf("%s: %d%%\n", goal.Title, cmd.Percent)
	return nil
}

type GoalMilestoneCmd struct {
	ID    string `arg:"" help:"Goal ID or unique prefix."`
	Title string `arg:"" help:"Milestone title."`
}

func (cmd *GoalMilestoneCmd) Run(ctx *Context) error {
	goal, err := updateGoal(ctx, cmd.ID, func(g models.Goal) models.Patch {
		g.Milestones = append(slices.Clone(g.Milestones), models.Milestone{Title: cmd.Title})
		return models.Patch{"milestones": g.Milestones, "progress": g.ComputeProgress()}
	})
	if err != nil {
		return err
	}
	ctx.printf("Added milestone to %s: %s\n", goal.Title, cmd.Title)
	return nil
}

type GoalToggleCmd struct {
	ID        string `arg:"" help:"Goal ID or unique prefix."`
	Milestone int    `arg:"" help:"Milestone number as shown by 'goal list'."`
}

func (cmd *GoalToggleCmd) Run(ctx *Context) error {
	var toggled models.Milestone
	_, err := updateGoal(ctx, cmd.ID, func(g models.Goal) models.Patch {
		if cmd.Milestone < 1 || cmd.Milestone > len(g.Milestones) {
			return nil
		}
		g.Milestones = slices.Clone(g.Milestones)
		m := &g.Milestones[cmd.Milestone-1]
		m.Completed = !m.Completed
		toggled = *m
		return models.Patch{"milestones": g.Milestones, "progress": g.ComputeProgress()}
	})
	if err != nil {
		return err
	}
	ctx.printf("%s %s\n", checkbox(toggled.Completed), toggled.Title)
	return nil
}

// updateGoal resolves ref and dispatches the patch built from the current
// goal. A nil patch means the arguments did not fit the goal.
func updateGoal(ctx *Context, ref string, build func(models.Goal) models.Patch) (models.Goal, error) {
	c := context.Background()
	s, err := ctx.Ready(c)
	if err != nil {
		return models.Goal{}, err
	}
	goal, err := resolve(s.State().Goals, ref)
	if err != nil {
		return models.Goal{}, err
	}
	patch := build(goal)
	if patch == nil {
		return goal, fmt.Errorf("milestone out of range for goal %q (%d milestones)", goal.Title, len(goal.Milestones))
	}
	if _, err := ctx.dispatch(c, state.Update(state.Goals, goal.ID, patch)); err != nil {
		return goal, err
	}
	return goal, nil
}

type GoalDeleteCmd struct {
	ID string `arg:"" help:"Goal ID or unique prefix."`
}

func (cmd *GoalDeleteCmd) Run(ctx *Context) error {
	c := context.Background()
	s, err := ctx.Ready(c)
	if err != nil {
		return err
	}
	goal, err := resolve(s.State().Goals, cmd.ID)
	if err != nil {
		return err
	}
	if _, err := ctx.dispatch(c, state.Delete(state.Goals, goal.ID)); err != nil {
		return err
	}
	ctx.printf("Deleted goal: %s\n", goal.Title)
	return nil
}
