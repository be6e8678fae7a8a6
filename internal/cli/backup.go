package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/habitflow/internal/backup"
	"github.com/julianstephens/habitflow/internal/constants"
	"github.com/julianstephens/habitflow/internal/docstore/postgres"
	"github.com/julianstephens/habitflow/internal/logger"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the SQLite remote store." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List snapshots."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the remote store with a snapshot."`
}

func (c *Context) backups() (*backup.Manager, error) {
	if c.Config.LocalOnly() {
		return nil, ErrLocalOnly
	}
	if postgres.IsConnString(c.Config.Remote) {
		return nil, errors.New("backups cover SQLite stores only; use pg_dump for PostgreSQL")
	}
	return backup.NewManager(c.Config.RemotePath()), nil
}

type BackupCreateCmd struct{}

func (cmd *BackupCreateCmd) Run(ctx *Context) error {
	m, err := ctx.backups()
	if err != nil {
		return err
	}
	info, err := m.Create(context.Background())
	if err != nil {
		return err
	}
	ctx.printf("✓ Backup created: %s (%s)\n", info.Name(), humanize.Bytes(uint64(info.Size)))
	return nil
}

type BackupListCmd struct{}

func (cmd *BackupListCmd) Run(ctx *Context) error {
	m, err := ctx.backups()
	if err != nil {
		return err
	}
	backups, err := m.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		ctx.printf("No backups found in %s\n", m.Dir())
		return nil
	}
	ctx.printf("Backups in %s:\n", m.Dir())
	for _, b := range backups {
		ctx.printf("  %s  %-10s %s\n", b.Name(), humanize.Bytes(uint64(b.Size)), humanize.Time(b.Timestamp))
	}
	return nil
}

type BackupRestoreCmd struct {
	Name string `arg:"" help:"Snapshot file name as shown by 'backup list'."`
}

func (cmd *BackupRestoreCmd) Run(ctx *Context) error {
	m, err := ctx.backups()
	if err != nil {
		return err
	}
	if ctx.docs != nil {
		return errors.New("cannot restore while the remote store is open")
	}
	path := cmd.Name
	if filepath.Base(path) == path {
		path = filepath.Join(m.Dir(), path)
	}
	previous, err := m.Restore(context.Background(), path)
	if err != nil {
		return err
	}
	if previous.Path != "" {
		ctx.printf("Saved the replaced database as %s\n", previous.Name())
	}
	ctx.printf("✓ Restored %s\n", filepath.Base(path))
	return nil
}

// autoBackup snapshots a SQLite remote store at most once a day. Failures
// are logged and never stop the command.
func (c *Context) autoBackup(ctx context.Context) {
	m, err := c.backups()
	if err != nil {
		return
	}
	backups, err := m.List()
	if err != nil {
		logger.Warn("Failed to list backups", "error", err)
		return
	}
	if len(backups) > 0 && backups[0].Timestamp.Format(constants.DateFormat) == today() {
		return
	}
	if _, err := m.Create(ctx); err != nil && !errors.Is(err, backup.ErrNoDatabase) {
		logger.Warn("Automatic backup failed", "error", err)
	}
}
