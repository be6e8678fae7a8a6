package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/julianstephens/habitflow/internal/cache"
	"github.com/julianstephens/habitflow/internal/keyring"
)

type InitCmd struct{}

func (cmd *InitCmd) Run(ctx *Context) error {
	if err := os.MkdirAll(ctx.Config.Dir(), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if ctx.Config.LocalOnly() {
		ctx.printf("Initialized local-only habitflow at: %s\n", ctx.Config.Dir())
		return nil
	}
	if _, err := ctx.Docs(context.Background()); err != nil {
		return err
	}
	ctx.printf("Initialized habitflow remote store at: %s\n", ctx.Config.Remote)
	return nil
}

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(ctx *Context) error {
	// Docs applies pending migrations as part of Init
	if _, err := ctx.Docs(context.Background()); err != nil {
		return err
	}
	ctx.printf("✓ Remote store schema is up to date\n")
	return nil
}

// DBPasswordCmd keeps the PostgreSQL password in the OS keyring so it never
// appears in the connection string.
type DBPasswordCmd struct {
	Clear bool `help:"Remove the stored password."`
}

func (cmd *DBPasswordCmd) Run(ctx *Context) error {
	if cmd.Clear {
		if err := keyring.DeleteDatabasePassword(); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		ctx.printf("✓ Database password removed from keyring\n")
		return nil
	}
	pw, err := promptPassword("PostgreSQL password")
	if err != nil {
		return err
	}
	if err := keyring.SetDatabasePassword(pw); err != nil {
		return err
	}
	ctx.printf("✓ Database password stored in keyring\n")
	return nil
}

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	ctx.printf("Running diagnostics...\n\n")

	type check struct {
		name    string
		run     func(*Context) error
		warning bool
	}
	checks := []check{
		{name: "Data directory writable", run: checkDataDir},
		{name: "OS keyring", run: checkKeyring, warning: ctx.Config.JWTSecret != ""},
		{name: "Remote store reachable", run: checkRemote},
		{name: "Local cache readable", run: checkCache},
		{name: "Clock/timezone", run: checkClock},
	}

	failed := false
	for _, c := range checks {
		err := c.run(ctx)
		switch {
		case err == nil:
			ctx.printf("✓ %s: OK\n", c.name)
		case errors.Is(err, errSkipped):
			ctx.printf("⊘ %s: SKIPPED (%v)\n", c.name, err)
		case c.warning:
			ctx.printf("⚠ %s: WARNING\n   %v\n", c.name, err)
		default:
			ctx.printf("❌ %s: FAIL\n   Error: %v\n", c.name, err)
			failed = true
		}
	}

	ctx.printf("\n")
	if failed {
		ctx.printf("Diagnostics completed with errors.\n")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.printf("All diagnostics passed!\n")
	return nil
}

var errSkipped = errors.New("skipped")

func checkDataDir(ctx *Context) error {
	dir := ctx.Config.Dir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkKeyring(*Context) error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}

func checkRemote(ctx *Context) error {
	if ctx.Config.LocalOnly() {
		return fmt.Errorf("%w: local-only build", errSkipped)
	}
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := ctx.Docs(c)
	return err
}

func checkCache(ctx *Context) error {
	if !ctx.Config.LocalOnly() {
		return fmt.Errorf("%w: remote build keeps no cache", errSkipped)
	}
	_, _, err := cache.New(ctx.Config.CachePath()).Load()
	return err
}

func checkClock(*Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

// PathsCmd prints where habitflow keeps its data, for troubleshooting.
type PathsCmd struct{}

func (cmd *PathsCmd) Run(ctx *Context) error {
	return ctx.printJSON(map[string]any{
		"data_dir":   ctx.Config.Dir(),
		"cache":      ctx.Config.CachePath(),
		"remote":     ctx.Config.RemotePath(),
		"local_only": ctx.Config.LocalOnly(),
		"policy":     ctx.Config.SyncPolicy().String(),
	})
}
