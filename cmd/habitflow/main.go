package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitflow/internal/cli"
	"github.com/julianstephens/habitflow/internal/config"
	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/errors"
	"github.com/julianstephens/habitflow/internal/logger"
)

var CLI struct {
	Version       kong.VersionFlag
	config.Config `embed:""`

	Init       cli.InitCmd       `cmd:"" help:"Create the data directory and initialize the remote store."`
	Migrate    cli.MigrateCmd    `cmd:"" help:"Apply remote store migrations."`
	Doctor     cli.DoctorCmd     `cmd:"" help:"Run health checks and diagnostics."`
	DBPassword cli.DBPasswordCmd `cmd:"" name:"db-password" help:"Store the PostgreSQL password in the OS keyring."`
	Paths      cli.PathsCmd      `cmd:"" help:"Show data, cache and remote locations as JSON."`
	Backup     cli.BackupCmd     `cmd:"" help:"Manage snapshots of a SQLite remote store."`

	Signup cli.SignupCmd `cmd:"" help:"Create an account and sign in."`
	Login  cli.LoginCmd  `cmd:"" help:"Sign in."`
	Logout cli.LogoutCmd `cmd:"" help:"Sign out."`
	Passwd cli.PasswdCmd `cmd:"" help:"Change the account password."`
	Whoami cli.WhoamiCmd `cmd:"" help:"Show the signed-in user."`

	Todo      cli.TodoCmd      `cmd:"" help:"Manage todos."`
	Goal      cli.GoalCmd      `cmd:"" help:"Manage goals and milestones."`
	Habit     cli.HabitCmd     `cmd:"" help:"Track habits from the catalog."`
	Journal   cli.JournalCmd   `cmd:"" help:"Write and read journal entries."`
	Nutrition cli.NutritionCmd `cmd:"" help:"Nutrition goals and daily intake."`
	Meal      cli.MealCmd      `cmd:"" help:"Log meals."`
	Water     cli.WaterCmd     `cmd:"" help:"Log water intake."`
	Finance   cli.FinanceCmd   `cmd:"" help:"Track income and expenses."`
	Letter    cli.LetterCmd    `cmd:"" help:"Letters to your future self."`
	Entity    cli.EntityCmd    `cmd:"" help:"Edit any collection as JSON."`
	Stats     cli.StatsCmd     `cmd:"" help:"Show lifetime stats and level."`

	State    cli.StateCmd    `cmd:"" help:"Print the current state as JSON."`
	Dispatch cli.DispatchCmd `cmd:"" help:"Dispatch an action envelope."`
	Sync     cli.SyncCmd     `cmd:"" help:"Show remote sync status."`
	Serve    cli.ServeCmd    `cmd:"" help:"Serve the JSON API."`
	Tui      cli.TuiCmd      `cmd:"" help:"Launch the interactive dashboard." default:"1"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	vars := kong.Vars(config.Vars())
	vars["version"] = constants.Version
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habits, goals, todos and journaling with local-first sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		vars,
	)

	if err := CLI.Config.Validate(); err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(CLI.Config.Logger()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	appCtx := &cli.Context{Config: CLI.Config}
	err := ctx.Run(appCtx)
	if cerr := appCtx.Close(); cerr != nil {
		logger.Warn("Failed to close remote store", "error", cerr)
	}
	errors.Fatal(err)
}
